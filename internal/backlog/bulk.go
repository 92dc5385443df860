package backlog

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

// MarkDone marks every pending task whose text matches any of the
// case-insensitive patterns as done. Tasks in progress are left alone.
func MarkDone(data []byte, patterns []string) ([]byte, int, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		res = append(res, re)
	}

	doc := Parse(data)
	marked := 0
	for i := range doc.entries {
		e := &doc.entries[i]
		if e.task.Status != Pending {
			continue
		}
		for _, re := range res {
			if re.MatchString(e.task.Text) {
				doc.setStatus(i, Done)
				marked++
				break
			}
		}
	}
	return doc.Bytes(), marked, nil
}

// MarkDone applies the package-level MarkDone to the ledger file.
func (l *FileLedger) MarkDone(patterns []string) (int, error) {
	var marked int
	err := l.Update(func(data []byte) ([]byte, error) {
		out, n, err := MarkDone(data, patterns)
		marked = n
		return out, err
	})
	if err != nil {
		return 0, err
	}
	l.log.Info("bulk completion", zap.Int("marked", marked))
	return marked, nil
}
