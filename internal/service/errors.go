package service

import "fmt"

type ErrBuildAlreadyRunning struct {
	ScriptID string
}

func (e ErrBuildAlreadyRunning) Error() string {
	return fmt.Sprintf("a build is already in progress for script %s", e.ScriptID)
}

func NewErrBuildAlreadyRunning(scriptID string) *ErrBuildAlreadyRunning {
	return &ErrBuildAlreadyRunning{ScriptID: scriptID}
}

type ErrInvalidWebhookToken struct{}

func (e ErrInvalidWebhookToken) Error() string {
	return "invalid webhook token"
}

func NewErrInvalidWebhookToken() *ErrInvalidWebhookToken {
	return &ErrInvalidWebhookToken{}
}

type ErrInvalidSchedule struct {
	Expression string
	Reason     error
}

func (e ErrInvalidSchedule) Error() string {
	return fmt.Sprintf("invalid cron expression %q: %v", e.Expression, e.Reason)
}

func NewErrInvalidSchedule(expression string, reason error) *ErrInvalidSchedule {
	return &ErrInvalidSchedule{Expression: expression, Reason: reason}
}
