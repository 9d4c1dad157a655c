package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
)

// MentionFlags is an insertion-ordered name -> 0|1 mapping. It marshals as a
// JSON object whose keys appear in the order the names were supplied, so a
// persisted report round-trips with the caller's brand/domain list order
// intact.
type MentionFlags struct {
	names []string
	flags map[string]int
}

func NewMentionFlags(names []string) MentionFlags {
	f := MentionFlags{flags: make(map[string]int, len(names))}
	for _, n := range names {
		if _, dup := f.flags[n]; dup {
			continue
		}
		f.names = append(f.names, n)
		f.flags[n] = 0
	}
	return f
}

func (f *MentionFlags) Set(name string, hit bool) {
	if _, ok := f.flags[name]; !ok {
		return
	}
	if hit {
		f.flags[name] = 1
	} else {
		f.flags[name] = 0
	}
}

func (f MentionFlags) Get(name string) int { return f.flags[name] }

// Names returns the key order. The returned slice must not be mutated.
func (f MentionFlags) Names() []string { return f.names }

func (f MentionFlags) Len() int { return len(f.names) }

func (f MentionFlags) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range f.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", f.flags[n])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *MentionFlags) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("mention flags: expected object")
	}
	f.names = nil
	f.flags = make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var v int
		if err := dec.Decode(&v); err != nil {
			return err
		}
		f.names = append(f.names, key)
		f.flags[key] = v
	}
	_, err = dec.Token() // closing brace
	return err
}

// MentionAnalysis is a pure function of a response text and the configured
// brand/domain lists; it carries no references back to runner state.
type MentionAnalysis struct {
	Brands              MentionFlags `json:"brands"`
	Domains             MentionFlags `json:"domains"`
	HasBrandMention     bool         `json:"hasBrandMention"`
	HasDomainMention    bool         `json:"hasDomainMention"`
	TotalBrandMentions  int          `json:"totalBrandMentions"`
	TotalDomainMentions int          `json:"totalDomainMentions"`
}

// ZeroAnalysis returns the all-zero analysis for error results; the flag maps
// still carry exactly the supplied names.
func ZeroAnalysis(brands, domains []string) MentionAnalysis {
	return MentionAnalysis{
		Brands:  NewMentionFlags(brands),
		Domains: NewMentionFlags(domains),
	}
}

// PromptResult is one per input prompt, in the same order as the input list.
// Immutable after the batch returns.
type PromptResult struct {
	Prompt   string          `json:"prompt"`
	Response string          `json:"response"`
	Status   ResultStatus    `json:"status"`
	Analysis MentionAnalysis `json:"analysis"`
}

type NameStats struct {
	MentionCount int     `json:"mentionCount"`
	MentionRate  float64 `json:"mentionRate"`
}

type ReportSettings struct {
	Concurrency    int    `json:"concurrency"`
	RequestDelayMs int    `json:"requestDelayMs"`
	Endpoint       string `json:"endpoint"`
	Model          string `json:"model"`
}

// BatchReport is the self-describing snapshot built once after a batch
// completes; it serializes to a single JSON document for durable storage.
type BatchReport struct {
	TaskID             string               `json:"taskId"`
	TaskName           string               `json:"taskName,omitempty"`
	TotalPrompts       int                  `json:"totalPrompts"`
	SuccessfulQueries  int                  `json:"successfulQueries"`
	BrandMentionCount  int                  `json:"brandMentionCount"`
	DomainMentionCount int                  `json:"domainMentionCount"`
	BrandMentionRate   float64              `json:"brandMentionRate"`
	DomainMentionRate  float64              `json:"domainMentionRate"`
	Brands             []string             `json:"brands"`
	Domains            []string             `json:"domains"`
	BrandStats         map[string]NameStats `json:"brandStats"`
	DomainStats        map[string]NameStats `json:"domainStats"`
	Timestamp          time.Time            `json:"timestamp"`
	Settings           ReportSettings       `json:"settings"`
	Results            []PromptResult       `json:"results"`
}

var (
	_ json.Marshaler   = MentionFlags{}
	_ json.Unmarshaler = (*MentionFlags)(nil)
)
