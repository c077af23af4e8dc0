package common

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewSessionID generates a run identifier with the "run_" prefix
// Format: run_<uuid>
func NewSessionID() string {
	return "run_" + uuid.New().String()
}

// NewFailureID generates a failure record identifier. seq is the record's
// position in the session, zero-padded so ids sort in creation order.
// Format: err_<seq>_<8 hex chars>
func NewFailureID(seq uint64) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("err_%08d_%s", seq, suffix)
}

// NewIsolationToken identifies one test's isolation session
// Format: iso_<uuid>
func NewIsolationToken() string {
	return "iso_" + uuid.New().String()
}
