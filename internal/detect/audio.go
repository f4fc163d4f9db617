package detect

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"kpid/internal/blob"
	"kpid/internal/logging"
	"kpid/internal/services/speech"
	"kpid/internal/violation"
)

// Transcriber turns an audio URL into word-level timestamps.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) ([]speech.Word, error)
}

// AudioScanner transcribes a recording's audio and flags words on the
// abusive-word blacklist.
type AudioScanner struct {
	transcriber     Transcriber
	blobs           blob.Store
	blacklistObject string
	logger          *slog.Logger
}

// NewAudioScanner wires a scanner over the given transcriber. The blacklist
// CSV is loaded from the blob store on every scan so edits take effect
// without a restart.
func NewAudioScanner(transcriber Transcriber, blobs blob.Store, blacklistObject string, logger *slog.Logger) *AudioScanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AudioScanner{
		transcriber:     transcriber,
		blobs:           blobs,
		blacklistObject: blacklistObject,
		logger:          logger,
	}
}

// Scan returns one hit per transcribed word found on the blacklist.
func (s *AudioScanner) Scan(ctx context.Context, audioURL string) ([]violation.AudioHit, error) {
	blacklist, err := s.loadBlacklist(ctx)
	if err != nil {
		return nil, err
	}
	words, err := s.transcriber.Transcribe(ctx, audioURL)
	if err != nil {
		return nil, fmt.Errorf("transcribe audio: %w", err)
	}

	var hits []violation.AudioHit
	for _, word := range words {
		normalized := normalizeWord(word.Word)
		if normalized == "" {
			continue
		}
		if _, ok := blacklist[normalized]; !ok {
			continue
		}
		hits = append(hits, violation.AudioHit{Word: normalized, Time: word.Start})
	}
	s.logger.Debug("audio scan complete",
		logging.Int("words", len(words)),
		logging.Int("hits", len(hits)),
	)
	return hits, nil
}

// loadBlacklist reads the abusive-word CSV from the blob store. Words are
// taken from the first column; a header row named "word" is skipped.
func (s *AudioScanner) loadBlacklist(ctx context.Context) (map[string]struct{}, error) {
	r, err := s.blobs.Open(ctx, s.blacklistObject)
	if err != nil {
		return nil, fmt.Errorf("open blacklist %s: %w", s.blacklistObject, err)
	}
	defer r.Close()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	blacklist := make(map[string]struct{})
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read blacklist %s: %w", s.blacklistObject, err)
		}
		if len(record) == 0 {
			continue
		}
		word := normalizeWord(record[0])
		if first {
			first = false
			if word == "word" {
				continue
			}
		}
		if word == "" {
			continue
		}
		blacklist[word] = struct{}{}
	}
	if len(blacklist) == 0 {
		return nil, fmt.Errorf("blacklist %s is empty", s.blacklistObject)
	}
	return blacklist, nil
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(word), ".,!?\"'"))
}
