// Package image parses container image references. The machine builds
// and deploys one image; parsing its reference once, at startup, means
// the build and the deploy cannot disagree about which image it is.
package image

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	dockerHubHost    = "index.docker.io"
	oldDockerHubHost = "docker.io"
)

var (
	ErrInvalidImageID   = errors.New("invalid image ID")
	ErrBlankImageID     = errors.Wrap(ErrInvalidImageID, "blank image name")
	ErrMalformedImageID = errors.Wrap(ErrInvalidImageID, `expected image name as either <image>:<tag> or just <image>`)
	ErrUntaggedImageID  = errors.Wrap(ErrInvalidImageID, "image has no tag")
)

// Name is an image repository, without a tag; e.g., `atmhoff/lff-sdm`
// or `localhost:5000/team/app`. Images at DockerHub may leave out the
// domain.
type Name struct {
	Domain, Image string
}

func (i Name) String() string {
	if i.Image == "" {
		return ""
	}
	var host string
	if i.Domain != "" {
		host = i.Domain + "/"
	}
	return host + i.Image
}

// Repository returns the path part of the name, with the implied
// `library/` prefix for single-element DockerHub images.
func (i Name) Repository() string {
	switch i.Domain {
	case "", oldDockerHubHost, dockerHubHost:
		if !strings.Contains(i.Image, "/") {
			return "library/" + i.Image
		}
	}
	return i.Image
}

// Registry returns the host to push to or pull from.
func (i Name) Registry() string {
	switch i.Domain {
	case "", oldDockerHubHost:
		return dockerHubHost
	default:
		return i.Domain
	}
}

func (i Name) Canonical() Name {
	return Name{Domain: i.Registry(), Image: i.Repository()}
}

func (i Name) ToRef(tag string) Ref {
	return Ref{Name: i, Tag: tag}
}

// Ref is a tagged image, e.g., `atmhoff/lff-sdm:1.0.0`.
type Ref struct {
	Name
	Tag string
}

func (i Ref) String() string {
	var tag string
	if i.Tag != "" {
		tag = ":" + i.Tag
	}
	return i.Name.String() + tag
}

// Canonical returns the reference with the registry and repository
// filled in, keeping the tag.
func (i Ref) Canonical() Ref {
	return Ref{Name: i.Name.Canonical(), Tag: i.Tag}
}

// Equivalent says whether two references point at the same tag of the
// same repository, once what is implied by convention is filled in.
func (i Ref) Equivalent(o Ref) bool {
	return i.Canonical() == o.Canonical()
}

func (i Ref) WithNewTag(t string) Ref {
	i.Tag = t
	return i
}

// ParseRef parses a reference of the form `[domain/]path[:tag]`. It
// covers the common productions of the docker reference grammar, not
// digests.
func ParseRef(s string) (Ref, error) {
	var id Ref
	if s == "" {
		return id, errors.Wrapf(ErrBlankImageID, "parsing %q", s)
	}
	if strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") {
		return id, errors.Wrapf(ErrMalformedImageID, "parsing %q", s)
	}

	elements := strings.Split(s, "/")
	switch len(elements) {
	case 1:
		id.Image = s
	case 2:
		if domainRegexp.MatchString(elements[0]) {
			id.Domain = elements[0]
			id.Image = elements[1]
		} else {
			id.Image = s
		}
	default:
		id.Domain = elements[0]
		id.Image = strings.Join(elements[1:], "/")
	}

	imageParts := strings.Split(id.Image, ":")
	switch len(imageParts) {
	case 1:
	case 2:
		if imageParts[0] == "" || imageParts[1] == "" {
			return id, errors.Wrapf(ErrMalformedImageID, "parsing %q", s)
		}
		id.Image = imageParts[0]
		id.Tag = imageParts[1]
	default:
		return id, errors.Wrapf(ErrMalformedImageID, "parsing %q", s)
	}
	return id, nil
}

// ParseTaggedRef is ParseRef, but insists on a tag; an image that is
// built and then deployed must be referred to the same way both times,
// and `latest` by omission does not give that.
func ParseTaggedRef(s string) (Ref, error) {
	ref, err := ParseRef(s)
	if err != nil {
		return ref, err
	}
	if ref.Tag == "" {
		return ref, errors.Wrapf(ErrUntaggedImageID, "parsing %q", s)
	}
	return ref, nil
}

var (
	domainComponent = `([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9])`
	domain          = fmt.Sprintf(`^(localhost|(%s([.]%s)+))(:[0-9]+)?$`, domainComponent, domainComponent)
	domainRegexp    = regexp.MustCompile(domain)
)

func (i Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

func (i *Ref) UnmarshalJSON(data []byte) (err error) {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*i, err = ParseRef(str)
	return err
}
