package embedjob

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rotisserie/eris"
)

// embeddingEncoding is the tokenizer used by the text-embedding-3 models.
const embeddingEncoding = "cl100k_base"

// TiktokenCounter counts tokens with the cl100k_base BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the encoding. The first call fetches the BPE
// rank file unless a tiktoken cache directory is configured.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(embeddingEncoding)
	if err != nil {
		return nil, eris.Wrapf(err, "embedjob: load %s encoding", embeddingEncoding)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
