// Package speech turns reply text into spoken utterances and keeps the
// recognizer quiet while they play.
package speech

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// Voice is one synthesis voice offered by the platform.
type Voice struct {
	Name string `json:"name"`
	// Lang is a BCP 47 tag such as "en-US".
	Lang string `json:"lang"`
}

// Utterance is one request to the synthesizer.
type Utterance struct {
	Text   string  `json:"text"`
	Voice  Voice   `json:"voice"`
	Pitch  float64 `json:"pitch"`
	Rate   float64 `json:"rate"`
	Volume float64 `json:"volume"`
}

// Synthesizer is the platform's speech engine. Speak queues an utterance
// and returns; the platform reports completion through Driver.Finished.
type Synthesizer interface {
	Voices() []Voice
	Speak(u Utterance) error
}

// Listener is told when speech output starts and stops. The dictation
// machine implements it.
type Listener interface {
	SynthesisStarted()
	SynthesisEnded()
}

// Mood selects the prosody of an utterance.
type Mood int

const (
	Neutral Mood = iota
	Celebratory
	Apologetic
	Affectionate
)

func (m Mood) String() string {
	switch m {
	case Celebratory:
		return "celebratory"
	case Apologetic:
		return "apologetic"
	case Affectionate:
		return "affectionate"
	default:
		return "neutral"
	}
}

// Prosody is the pitch and rate used for a mood.
type Prosody struct {
	Pitch float64
	Rate  float64
}

var prosodies = map[Mood]Prosody{
	Neutral:      {Pitch: 1.1, Rate: 0.9},
	Celebratory:  {Pitch: 1.3, Rate: 1.1},
	Apologetic:   {Pitch: 0.9, Rate: 0.85},
	Affectionate: {Pitch: 1.2, Rate: 0.95},
}

// ProsodyFor returns the pitch and rate for m.
func ProsodyFor(m Mood) Prosody {
	return prosodies[m]
}

var (
	celebratoryWords  = []string{"🎉", "congrat", "awesome", "great", "yay", "you win", "granted", "success", "started"}
	apologeticWords   = []string{"error", "sorry", "denied", "couldn't", "cannot", "failed", "unavailable", "declined", "⚠", "❌"}
	affectionateWords = []string{"love", "sweet", "❤", "always", "dear", "😉"}
)

// Classify picks a mood from the words and symbols in text. The first
// matching family wins, in the order celebratory, apologetic, affectionate.
func Classify(text string) Mood {
	lower := strings.ToLower(text)
	has := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
	switch {
	case has(celebratoryWords):
		return Celebratory
	case has(apologeticWords):
		return Apologetic
	case has(affectionateWords):
		return Affectionate
	}
	return Neutral
}

var ruleLine = regexp.MustCompile(`[-=_*]{3,}`)

// Clean removes emoji and decorative symbols so the engine does not read
// them aloud, and collapses whitespace.
func Clean(text string) string {
	text = ruleLine.ReplaceAllString(text, " ")
	text = strings.Map(func(r rune) rune {
		switch {
		case unicode.Is(unicode.So, r), unicode.Is(unicode.Sk, r), unicode.Is(unicode.Co, r):
			return -1
		case r >= 0xFE00 && r <= 0xFE0F, r == 0x200D, r >= 0x1F3FB && r <= 0x1F3FF:
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}

// PickVoice chooses a voice by preference: the exact name, then the exact
// locale, then the same language, then the first voice. ok is false when
// voices is empty.
func PickVoice(voices []Voice, name, locale string) (v Voice, ok bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	for _, v := range voices {
		if name != "" && v.Name == name {
			return v, true
		}
	}
	want := canonicalLang(locale)
	for _, v := range voices {
		if want != "" && canonicalLang(v.Lang) == want {
			return v, true
		}
	}
	family, _, _ := strings.Cut(want, "-")
	for _, v := range voices {
		if f, _, _ := strings.Cut(canonicalLang(v.Lang), "-"); family != "" && f == family {
			return v, true
		}
	}
	return voices[0], true
}

func canonicalLang(tag string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
}

// Config wires a Driver.
type Config struct {
	Synth    Synthesizer
	Listener Listener
	// VoiceName and Locale drive PickVoice.
	VoiceName string
	Locale    string
}

// Driver speaks replies. It is safe for concurrent use.
type Driver struct {
	cfg Config

	mu       sync.Mutex
	queue    []Utterance // waiting for the platform to load voices
	inFlight int
}

// NewDriver returns a Driver. A nil Listener is allowed.
func NewDriver(cfg Config) *Driver {
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	return &Driver{cfg: cfg}
}

// Speak queues text for synthesis. mood overrides the heuristic choice when
// given. Text that is empty after cleaning is ignored. When the platform has
// no voices yet the utterance waits for VoicesChanged.
func (d *Driver) Speak(text string, mood ...Mood) {
	m := Classify(text)
	if len(mood) > 0 {
		m = mood[0]
	}
	clean := Clean(text)
	if clean == "" {
		return
	}
	p := ProsodyFor(m)
	u := Utterance{Text: clean, Pitch: p.Pitch, Rate: p.Rate, Volume: 1}

	voice, ok := PickVoice(d.cfg.Synth.Voices(), d.cfg.VoiceName, d.cfg.Locale)
	if !ok {
		d.mu.Lock()
		d.queue = append(d.queue, u)
		d.mu.Unlock()
		slog.Debug("speech: no voices yet, deferring utterance")
		return
	}
	u.Voice = voice
	d.say(u)
}

// VoicesChanged flushes utterances deferred while no voice was available.
func (d *Driver) VoicesChanged() {
	voice, ok := PickVoice(d.cfg.Synth.Voices(), d.cfg.VoiceName, d.cfg.Locale)
	if !ok {
		return
	}
	d.mu.Lock()
	queue := d.queue
	d.queue = nil
	d.mu.Unlock()

	for _, u := range queue {
		u.Voice = voice
		d.say(u)
	}
}

// Pending returns the number of utterances waiting for voices.
func (d *Driver) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Speaking reports whether any utterance is still playing.
func (d *Driver) Speaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight > 0
}

func (d *Driver) say(u Utterance) {
	d.mu.Lock()
	d.inFlight++
	first := d.inFlight == 1
	d.mu.Unlock()

	if first && d.cfg.Listener != nil {
		d.cfg.Listener.SynthesisStarted()
	}
	if err := d.cfg.Synth.Speak(u); err != nil {
		slog.Warn("speech: synthesis failed", "err", err)
		d.Finished()
	}
}

// Finished is the platform's completion event for one utterance. The
// listener is released when the last utterance in flight completes.
func (d *Driver) Finished() {
	d.mu.Lock()
	if d.inFlight == 0 {
		d.mu.Unlock()
		return
	}
	d.inFlight--
	last := d.inFlight == 0
	d.mu.Unlock()

	if last && d.cfg.Listener != nil {
		d.cfg.Listener.SynthesisEnded()
	}
}

// Cancel drops deferred utterances and releases the listener, for when the
// platform cancels synthesis wholesale.
func (d *Driver) Cancel() {
	d.mu.Lock()
	d.queue = nil
	had := d.inFlight > 0
	d.inFlight = 0
	d.mu.Unlock()

	if had && d.cfg.Listener != nil {
		d.cfg.Listener.SynthesisEnded()
	}
}
