package services

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
)

// fastaDescription returns the description line of the first record in a
// FASTA file: the text after ">" on the first non-blank line.
func fastaDescription(data []byte) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ">") {
			return "", fmt.Errorf("%w: fasta file must start with a '>' header line", common.ErrorValidation)
		}
		desc := strings.TrimSpace(strings.TrimPrefix(line, ">"))
		if desc == "" {
			return "", fmt.Errorf("%w: fasta header is empty", common.ErrorValidation)
		}
		return desc, nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return "", fmt.Errorf("%w: fasta file is empty", common.ErrorValidation)
}
