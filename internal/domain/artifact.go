package domain

import (
	"fmt"
	"sort"
	"time"
)

// TimestampLayout is the fixed format shared by every file produced in one
// backup run.
const TimestampLayout = "2006.01.02.15.04.05"

// remotePrefixLen is the number of leading characters stripped from a local
// file name to obtain its remote name: the 19-character timestamp plus the
// "." separator. It is derived from TimestampLayout so the two cannot drift
// apart; a shorter layout would silently truncate remote names at the wrong
// offset.
const remotePrefixLen = len(TimestampLayout) + 1

// Artifact names the local files produced by one backup run. A run produces
// either a single file or an ordered set of chunks, never both.
type Artifact struct {
	BaseName      string   `yaml:"base_name" json:"base_name"`
	Timestamp     string   `yaml:"timestamp" json:"timestamp"`
	ChunkSuffixes []string `yaml:"chunk_suffixes,omitempty" json:"chunk_suffixes,omitempty"`
}

// NewArtifact builds an artifact descriptor stamped with the run time.
func NewArtifact(baseName string, at time.Time, chunkSuffixes []string) Artifact {
	return Artifact{
		BaseName:      baseName,
		Timestamp:     at.Format(TimestampLayout),
		ChunkSuffixes: chunkSuffixes,
	}
}

// Chunked reports whether the artifact was split by the archive producer.
func (a Artifact) Chunked() bool {
	return len(a.ChunkSuffixes) > 0
}

// LocalFileNames returns the file names the run produced locally. Chunk
// suffixes are sorted lexically so transfer and removal always walk the
// chunks in the same order, regardless of how the producer reported them.
func (a Artifact) LocalFileNames() []string {
	if !a.Chunked() {
		return []string{fmt.Sprintf("%s.%s", a.Timestamp, a.BaseName)}
	}

	suffixes := append([]string(nil), a.ChunkSuffixes...)
	sort.Strings(suffixes)

	names := make([]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		names = append(names, fmt.Sprintf("%s.%s-%s", a.Timestamp, a.BaseName, suffix))
	}
	return names
}

// RemoteFileName strips the fixed-width timestamp prefix from a local file
// name. Names that do not extend past the prefix violate the caller
// contract.
func (a Artifact) RemoteFileName(local string) (string, error) {
	if len(local) <= remotePrefixLen {
		return "", fmt.Errorf("local file name %q is shorter than the %d-character timestamp prefix", local, remotePrefixLen)
	}
	return local[remotePrefixLen:], nil
}
