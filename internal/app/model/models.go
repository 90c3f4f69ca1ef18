package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MediaTypeMP4  = "video/mp4"
	MediaTypeMPEG = "audio/mpeg"
)

// Status is the upload workflow position. Values only move forward through
// waiting, converting, uploading, generating and success; error ends a failed run.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusConverting Status = "converting"
	StatusUploading  Status = "uploading"
	StatusGenerating Status = "generating"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

var statusOrder = map[Status]int{
	StatusWaiting:    0,
	StatusConverting: 1,
	StatusUploading:  2,
	StatusGenerating: 3,
	StatusSuccess:    4,
}

// Next returns the status that directly follows s on the happy path.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusWaiting:
		return StatusConverting, true
	case StatusConverting:
		return StatusUploading, true
	case StatusUploading:
		return StatusGenerating, true
	case StatusGenerating:
		return StatusSuccess, true
	case StatusSuccess, StatusError:
		return s, false
	default:
		return s, false
	}
}

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

func (s Status) Running() bool {
	switch s {
	case StatusConverting, StatusUploading, StatusGenerating:
		return true
	case StatusWaiting, StatusSuccess, StatusError:
		return false
	default:
		return false
	}
}

// Before reports whether s comes strictly before other on the happy path.
func (s Status) Before(other Status) bool {
	a, okA := statusOrder[s]
	b, okB := statusOrder[other]
	return okA && okB && a < b
}

func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok || s == StatusError
}

type VideoID string

type VideoFile struct {
	Name      string
	MediaType string
	Data      []byte
}

type AudioArtifact struct {
	Name      string
	MediaType string
	Data      []byte
}

type Prompt struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title    string             `json:"title" bson:"title" yaml:"title"`
	Template string             `json:"template" bson:"template" yaml:"template"`
}

type Video struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	Path          string             `json:"path" bson:"path"`
	Transcription string             `json:"transcription,omitempty" bson:"transcription,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
}
