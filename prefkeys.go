package courier

import (
	"math"
	"sort"
	"strings"
)

// PreferenceKey names a user preference. The set of keys is closed:
// only the constants below are accepted by the store and the ledger.
type PreferenceKey string

const (
	KeyAutoAnswerEnabled   PreferenceKey = "autoAnswerEnabled"
	KeyAutoReplyEnabled    PreferenceKey = "autoReplyEnabled"
	KeyWakeWordSensitivity PreferenceKey = "wakeWordSensitivity"
	KeyVoiceLanguage       PreferenceKey = "voiceLanguage"
	KeyTTSVoice            PreferenceKey = "ttsVoice"
	KeyConversationTimeout PreferenceKey = "conversationTimeout"
	KeyNotificationEmail   PreferenceKey = "notificationEmail"
)

// Conversation timeout bounds, in seconds.
const (
	MinConversationTimeout = 10
	MaxConversationTimeout = 3600
)

type keySpec struct {
	kind     Kind
	def      Value
	validate func(Value) string
}

var preferenceKeys = map[PreferenceKey]keySpec{
	KeyAutoAnswerEnabled: {kind: KindBool, def: BoolValue(false)},
	KeyAutoReplyEnabled:  {kind: KindBool, def: BoolValue(false)},
	KeyWakeWordSensitivity: {
		kind: KindFloat,
		def:  FloatValue(0.5),
		validate: func(v Value) string {
			if f, _ := v.AsFloat(); f < 0 || f > 1 {
				return "must be between 0 and 1"
			}
			return ""
		},
	},
	KeyVoiceLanguage: {kind: KindString, def: StringValue("en"), validate: nonEmpty},
	KeyTTSVoice:      {kind: KindString, def: StringValue("nova"), validate: nonEmpty},
	KeyConversationTimeout: {
		kind: KindInt,
		def:  IntValue(300),
		validate: func(v Value) string {
			if i, _ := v.AsInt(); i < MinConversationTimeout || i > MaxConversationTimeout {
				return "must be between 10 and 3600 seconds"
			}
			return ""
		},
	},
	KeyNotificationEmail: {
		kind: KindString,
		def:  StringValue(""),
		validate: func(v Value) string {
			if s, _ := v.AsString(); s != "" && !strings.Contains(s, "@") {
				return "must be an email address"
			}
			return ""
		},
	},
}

func nonEmpty(v Value) string {
	if s, _ := v.AsString(); strings.TrimSpace(s) == "" {
		return "must not be empty"
	}
	return ""
}

// PreferenceKeys returns every recognized key in lexical order.
func PreferenceKeys() []PreferenceKey {
	keys := make([]PreferenceKey, 0, len(preferenceKeys))
	for k := range preferenceKeys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ParsePreferenceKey returns the key named s, or *UnknownPreferenceKeyError.
func ParsePreferenceKey(s string) (PreferenceKey, error) {
	k := PreferenceKey(s)
	if !k.IsValid() {
		return "", &UnknownPreferenceKeyError{Key: s}
	}
	return k, nil
}

// IsValid reports whether k is a recognized key.
func (k PreferenceKey) IsValid() bool {
	_, ok := preferenceKeys[k]
	return ok
}

// Kind returns the value kind stored under k, or KindInvalid.
func (k PreferenceKey) Kind() Kind {
	return preferenceKeys[k].kind
}

// Default returns the documented default for k.
func (k PreferenceKey) Default() Value {
	return preferenceKeys[k].def
}

// Normalize validates v for k and converts numeric values to the key's kind.
func (k PreferenceKey) Normalize(v Value) (Value, error) {
	spec, ok := preferenceKeys[k]
	if !ok {
		return Value{}, &UnknownPreferenceKeyError{Key: string(k)}
	}
	out, ok := coerce(v, spec.kind)
	if !ok {
		return Value{}, &InvalidValueError{Key: k, Value: v, Reason: "expected " + spec.kind.String()}
	}
	if f, isFloat := out.AsFloat(); isFloat && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return Value{}, &InvalidValueError{Key: k, Value: v, Reason: "must be a finite number"}
	}
	if spec.validate != nil {
		if reason := spec.validate(out); reason != "" {
			return Value{}, &InvalidValueError{Key: k, Value: v, Reason: reason}
		}
	}
	return out, nil
}

// Parse interprets command-line text as a value for k.
func (k PreferenceKey) Parse(text string) (Value, error) {
	spec, ok := preferenceKeys[k]
	if !ok {
		return Value{}, &UnknownPreferenceKeyError{Key: string(k)}
	}
	v, err := ParseValue(spec.kind, text)
	if err != nil {
		return Value{}, &InvalidValueError{Key: k, Value: StringValue(text), Reason: err.Error()}
	}
	return k.Normalize(v)
}

// Preferences is a full preference map. Missing keys read as their default.
type Preferences map[PreferenceKey]Value

// DefaultPreferences returns a map holding every key's default.
func DefaultPreferences() Preferences {
	p := make(Preferences, len(preferenceKeys))
	for k, spec := range preferenceKeys {
		p[k] = spec.def
	}
	return p
}

// Get returns the value for k, falling back to the key default.
func (p Preferences) Get(k PreferenceKey) Value {
	if v, ok := p[k]; ok {
		return v
	}
	return k.Default()
}

func (p Preferences) AutoAnswerEnabled() bool {
	b, _ := p.Get(KeyAutoAnswerEnabled).AsBool()
	return b
}

func (p Preferences) AutoReplyEnabled() bool {
	b, _ := p.Get(KeyAutoReplyEnabled).AsBool()
	return b
}

func (p Preferences) WakeWordSensitivity() float64 {
	f, _ := p.Get(KeyWakeWordSensitivity).AsFloat()
	return f
}

func (p Preferences) VoiceLanguage() string {
	s, _ := p.Get(KeyVoiceLanguage).AsString()
	return s
}

func (p Preferences) TTSVoice() string {
	s, _ := p.Get(KeyTTSVoice).AsString()
	return s
}

func (p Preferences) ConversationTimeout() int64 {
	i, _ := p.Get(KeyConversationTimeout).AsInt()
	return i
}

func (p Preferences) NotificationEmail() string {
	s, _ := p.Get(KeyNotificationEmail).AsString()
	return s
}

// Clone returns a copy safe to hand to another goroutine.
func (p Preferences) Clone() Preferences {
	out := make(Preferences, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
