package platform

import (
	"errors"

	"github.com/bdobrica/Ghost/internal/ghost/speech"
)

// ErrNoAudio is returned by Silent for every audio request.
var ErrNoAudio = errors.New("platform: transport has no audio")

// Silent is the platform of text-only transports such as Matrix rooms.
type Silent struct{}

func (Silent) Start() error                 { return ErrNoAudio }
func (Silent) Stop() error                  { return nil }
func (Silent) Voices() []speech.Voice       { return nil }
func (Silent) Speak(speech.Utterance) error { return ErrNoAudio }
