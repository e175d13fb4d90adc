package vocab

import (
	"encoding/json"
	"fmt"
	"os"
)

type vocabData struct {
	Tokenizer string   `json:"tokenizer"`
	Symbols   []string `json:"symbols"`
	Size      int      `json:"size"`
}

// Save writes the vocabulary as indented JSON.
func (v *Vocabulary) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(vocabData{
		Tokenizer: v.tok.Name(),
		Symbols:   v.itos,
		Size:      len(v.itos),
	})
}

// Load reads a vocabulary written by Save.
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var data vocabData
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding vocabulary %s: %w", path, err)
	}
	if len(data.Symbols) == 0 || data.Symbols[UnkID] != Unk {
		return nil, fmt.Errorf("vocabulary %s: id %d must be %q", path, UnkID, Unk)
	}
	seen := make(map[string]bool, len(data.Symbols))
	for _, s := range data.Symbols {
		if seen[s] {
			return nil, fmt.Errorf("vocabulary %s: duplicate symbol %q", path, s)
		}
		seen[s] = true
	}

	tok, err := TokenizerByName(data.Tokenizer)
	if err != nil {
		return nil, err
	}
	return newVocabulary(data.Symbols, tok), nil
}
