package platform

import (
	"fmt"
	"io"
	"sync"

	"github.com/bdobrica/Ghost/internal/ghost/speech"
)

// RecognitionSink receives recognition events. The dictation machine
// implements it.
type RecognitionSink interface {
	Result(transcript string, final bool)
	Ended()
}

// Console is the terminal platform. Recognition is simulated: transcripts
// typed with Hear count as heard only while recognition runs. Utterances are
// printed and complete at once.
type Console struct {
	out io.Writer

	mu        sync.Mutex
	sink      RecognitionSink
	finished  func()
	listening bool
}

// NewConsole returns a Console printing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Bind connects the console to the recognition sink and to the completion
// callback of the speech driver.
func (c *Console) Bind(sink RecognitionSink, finished func()) {
	c.mu.Lock()
	c.sink = sink
	c.finished = finished
	c.mu.Unlock()
}

// Start begins simulated recognition.
func (c *Console) Start() error {
	c.mu.Lock()
	c.listening = true
	c.mu.Unlock()
	return nil
}

// Stop ends simulated recognition and confirms it immediately.
func (c *Console) Stop() error {
	c.mu.Lock()
	c.listening = false
	sink := c.sink
	c.mu.Unlock()
	if sink != nil {
		sink.Ended()
	}
	return nil
}

// Listening reports whether recognition is running.
func (c *Console) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// Hear delivers transcript as a final result. It reports false when
// recognition is not running and nothing was heard.
func (c *Console) Hear(transcript string) bool {
	c.mu.Lock()
	sink, listening := c.sink, c.listening
	c.mu.Unlock()
	if !listening || sink == nil {
		return false
	}
	sink.Result(transcript, true)
	return true
}

// Voices offers a single en-US voice.
func (c *Console) Voices() []speech.Voice {
	return []speech.Voice{{Name: "console", Lang: "en-US"}}
}

// Speak prints the utterance and reports it finished.
func (c *Console) Speak(u speech.Utterance) error {
	if _, err := fmt.Fprintf(c.out, "🔊 %s\n", u.Text); err != nil {
		return fmt.Errorf("platform: console speak: %w", err)
	}
	c.mu.Lock()
	finished := c.finished
	c.mu.Unlock()
	if finished != nil {
		finished()
	}
	return nil
}
