package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrAccountNotApproved = errors.New("account not approved")
	ErrAccountExpired     = errors.New("account expired")
	ErrForbidden          = errors.New("access forbidden")

	ErrArtifactNotFound   = errors.New("artifact not found")
	ErrTranscriptNotFound = errors.New("transcript not found")
	ErrInvalidRefinement  = errors.New("unsupported refinement kind")

	ErrFileNotReady     = errors.New("uploaded file never became ready")
	ErrEmptyUpload      = errors.New("no audio files uploaded")
	ErrDuplicateRequest = errors.New("duplicate request")
)
