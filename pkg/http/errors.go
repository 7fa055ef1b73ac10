package http

import (
	"errors"

	sdmerr "github.com/looking-for-freedom/lff-sdm/pkg/errors"
)

var ErrorUnauthorized = &sdmerr.Error{
	Type: sdmerr.User,
	Help: `The request failed authentication

For GitHub webhooks, this means the payload signature did not match
the secret the daemon was started with. Check that the secret given
to sdmd with --github-webhook-secret is the same as the one in the
webhook settings of the repository.
`,
	Err: errors.New("request failed authentication"),
}

func MakeAPINotFound(path string) *sdmerr.Error {
	return &sdmerr.Error{
		Type: sdmerr.Missing,
		Help: `The API endpoint requested is not supported by this server.

This indicates that your client (probably sdmctl) is either out of
date, or faulty. The path requested was:

    ` + path + `
`,
		Err: errors.New("API endpoint not found"),
	}
}
