// Package host is the boundary to the process layer that owns the OS-level terminals.
package host

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/go-errors/errors"

	"github.com/abdullathedruid/termdeck/internal/workspace"
)

var (
	// ErrPermissionRequired means the agent could not be started until the
	// user grants access. It is surfaced to the user rather than retried.
	ErrPermissionRequired = stderrors.New("permission required")
	// ErrUnknownTerminal is returned for operations on a terminal that does not exist.
	ErrUnknownTerminal = stderrors.New("unknown terminal")
)

// OutputHandler receives output chunks in the order the terminal produced them.
type OutputHandler func(chunk string)

// Backend is everything the workspace layer needs from the terminal host.
// All methods may block; none of them are cancellable mid-flight by the
// backend transport, so callers treat ctx as a deadline for waiting only.
type Backend interface {
	TerminalExists(ctx context.Context, id workspace.ID) (bool, error)
	CreateTerminal(ctx context.Context, id workspace.ID, cwd string) error
	WriteTerminal(ctx context.Context, id workspace.ID, data string) error
	ResizeTerminal(ctx context.Context, id workspace.ID, cols, rows int) error
	GetTerminalBuffer(ctx context.Context, id workspace.ID) (string, error)
	StartAgent(ctx context.Context, target workspace.Target) error
	SubscribeOutput(id workspace.ID, handler OutputHandler) (unsubscribe func(), err error)
	GetCurrentWorkingDirectory(ctx context.Context) (string, error)
}

// IsPermissionRequired reports whether err means the user must grant access.
// Errors crossing a transport may only keep their message, so the text is
// checked as well.
func IsPermissionRequired(err error) bool {
	if err == nil {
		return false
	}
	if errorsIs(err, ErrPermissionRequired) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission required") || strings.Contains(msg, "permission denied")
}

func errorsIs(err, target error) bool {
	return stderrors.Is(err, target) || stderrors.Is(unwrapStack(err), target)
}

// wrap attaches a stack trace to err at the host boundary.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, 1)
}

// unwrapStack returns the error carried inside a stack wrapper.
func unwrapStack(err error) error {
	var withStack *errors.Error
	if stderrors.As(err, &withStack) {
		return withStack.Err
	}
	return err
}

// Stack returns the stack trace captured at the host boundary, if any.
func Stack(err error) string {
	var withStack *errors.Error
	if stderrors.As(err, &withStack) {
		return withStack.ErrorStack()
	}
	return ""
}
