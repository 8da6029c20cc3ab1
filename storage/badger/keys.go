package badger

import (
	"fmt"

	"github.com/transvec/transvec/core"
)

// Key prefixes for different data types
const (
	entryRecordPrefix = "vecent"
	entryVideoPrefix  = "vecentvid"
	ingestionPrefix   = "inglog"
)

// makeEntryKey generates the primary key for an index entry.
// Format: prefix:modelVersion:chunkID
func makeEntryKey(modelVersion string, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d", entryRecordPrefix, modelVersion, id))
}

// makeEntryScanPrefix generates the prefix covering all entries of a model version.
func makeEntryScanPrefix(modelVersion string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", entryRecordPrefix, modelVersion))
}

// makeEntryVideoKey generates a composite key for the video index.
// Format: prefix:modelVersion:videoID:chunkID
func makeEntryVideoKey(modelVersion, videoID string, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%d", entryVideoPrefix, modelVersion, videoID, id))
}

// makeEntryVideoScanPrefix generates the prefix covering one video's entries
// under a model version.
func makeEntryVideoScanPrefix(modelVersion, videoID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", entryVideoPrefix, modelVersion, videoID))
}

// makeIngestionLogKey generates the key for a video's ingestion record.
func makeIngestionLogKey(videoID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", ingestionPrefix, videoID))
}
