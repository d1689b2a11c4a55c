package task

import (
	"errors"

	"clipbot/media"
)

// ErrNoUploadLink is returned when a result's link is read before the upload
// stage has set it. This is a logic fault in the pipeline, not a data
// problem.
var ErrNoUploadLink = errors.New("no upload link set on result")

// Result is the encoded output of one successful cut, pending upload.
type Result struct {
	Media     []byte
	MediaType media.Type
	Message   Message

	uploadLink string
}

// UploadLink returns the hosted link once the upload stage has recorded it.
func (r *Result) UploadLink() (string, error) {
	if r.uploadLink == "" {
		return "", ErrNoUploadLink
	}
	return r.uploadLink, nil
}

// SetUploadLink records the hosted link after a successful upload.
func (r *Result) SetUploadLink(link string) {
	r.uploadLink = link
}
