package errors

import (
	"encoding/json"
	"errors"
)

// Error is how failures are represented to API clients. The Type
// says whose fault it is:
//  - Server: something went wrong on our side, and trying again may help;
//  - Missing: the thing asked for (e.g., a job) does not exist;
//  - User: the request cannot succeed until the caller changes it.
type Error struct {
	Type Type
	// Help is printed for the operator
	Help string `json:"help"`
	// Err is the underlying cause, for logs
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Type) + " error"
	}
	return e.Err.Error()
}

type Type string

const (
	Server  Type = "server"
	Missing Type = "missing"
	User    Type = "user"
)

func IsMissing(err error) bool {
	if err, ok := err.(*Error); ok && err.Type == Missing {
		return true
	}
	return false
}

func IsUser(err error) bool {
	if err, ok := err.(*Error); ok && err.Type == User {
		return true
	}
	return false
}

type jsonError struct {
	Type string `json:"type"`
	Help string `json:"help"`
	Err  string `json:"error,omitempty"`
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	return json.Marshal(jsonError{
		Type: string(e.Type),
		Help: e.Help,
		Err:  errMsg,
	})
}

func (e *Error) UnmarshalJSON(data []byte) error {
	var j jsonError
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	e.Type = Type(j.Type)
	e.Help = j.Help
	if j.Err != "" {
		e.Err = errors.New(j.Err)
	}
	return nil
}

// CoverAllError wraps an error that has no specific help text.
func CoverAllError(err error) *Error {
	return &Error{
		Type: Server,
		Err:  err,
		Help: `Error: ` + err.Error() + `

There is no specific help for the error above. If it keeps happening,
please open an issue at

    https://github.com/looking-for-freedom/lff-sdm/issues

saying what you were doing, and quoting the message at the top.
`,
	}
}

// UnknownJob is returned when asked about a job ID that is not (or no
// longer) known.
func UnknownJob(id string) *Error {
	return &Error{
		Type: Missing,
		Err:  errors.New("unknown job " + id),
		Help: `The job ` + id + ` is not known.

Job statuses are kept for a limited time after the job finishes. The
job may have expired, or the ID may be mistyped.
`,
	}
}

// BadPush is returned when a push notification cannot be used.
func BadPush(err error) *Error {
	return &Error{
		Type: User,
		Err:  err,
		Help: `The push notification could not be understood.

A push must name the repository owner and repository name, either
directly or through a clone URL. The underlying problem was:

    ` + err.Error() + `
`,
	}
}
