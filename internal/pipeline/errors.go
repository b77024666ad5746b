// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import "fmt"

// BadRequestError is raised for cursor-parse failures, an unknown execution
// environment, or a malformed rewritten projection (§7). The offending token
// is carried verbatim so the caller can surface it to the user.
type BadRequestError struct {
	Reason string
	Token  string
}

func (e *BadRequestError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("bad request: %s", e.Reason)
	}
	return fmt.Sprintf("bad request: %s (token: %q)", e.Reason, e.Token)
}

func newBadRequest(reason, token string) *BadRequestError {
	return &BadRequestError{Reason: reason, Token: token}
}

// FatalError represents an internal invariant violation (§7): the query
// crashes, no partial results are returned.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal query execution error: %s", e.Reason)
}

func newFatal(reason string) *FatalError {
	return &FatalError{Reason: reason}
}

// TransientError wraps the ActivityId of the source page that failed, for
// user-visible diagnostics (§7: "the activity id of the offending source
// page"). It is never raised -- it travels inside a failure Page, never as a
// Go error return, matching "everything else flows through the
// Page.success=false channel".
type TransientError struct {
	ActivityID string
	Message    string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error (activityId=%s): %s", e.ActivityID, e.Message)
}
