package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/jsonc"
)

// parseJSON 先用 jsonc 去掉注释和尾逗号，再按 token 流构建节点，保留键的顺序
func parseJSON(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()

	root, err := readJSON(dec, 0)
	if err != nil {
		return nil, err
	}
	// 只允许一个顶层值
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value at offset %d", dec.InputOffset())
	}
	return root, nil
}

func readJSON(dec *json.Decoder, depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("document nested deeper than %d levels", maxDepth)
	}
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch v := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		if v {
			return Scalar(TagBool, "true"), nil
		}
		return Scalar(TagBool, "false"), nil
	case string:
		return String(v), nil
	case json.Number:
		s := v.String()
		if strings.ContainsAny(s, ".eE") {
			return Scalar(TagFloat, s), nil
		}
		return Scalar(TagInt, s), nil
	case json.Delim:
		switch v {
		case '[':
			seq := Sequence()
			for dec.More() {
				item, err := readJSON(dec, depth+1)
				if err != nil {
					return nil, err
				}
				seq.items = append(seq.items, item)
			}
			if _, err := dec.Token(); err != nil { // ']'
				return nil, err
			}
			return seq, nil
		case '{':
			m := Mapping()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key at offset %d", dec.InputOffset())
				}
				if m.Get(key) != nil {
					return nil, fmt.Errorf("object key %q already defined", key)
				}
				val, err := readJSON(dec, depth+1)
				if err != nil {
					return nil, err
				}
				m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // '}'
				return nil, err
			}
			return m, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %v at offset %d", tok, dec.InputOffset())
}
