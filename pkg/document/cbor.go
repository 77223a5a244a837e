package document

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"slices"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// 严格的 CBOR 解码选项
var decOptions = cbor.DecOptions{
	// --- 安全性配置 (防 DoS 攻击) ---
	// 限制容器元素数量和嵌套深度，防止恶意构造的巨大头部耗尽内存或栈
	MaxArrayElements: 100000,
	MaxMapPairs:      100000,
	MaxNestedLevels:  maxDepth,

	// --- 规范性配置 ---
	// 重复的 Key 视为错误，与 YAML / JSON 的行为保持一致
	DupMapKey: cbor.DupMapKeyEnforcedAPF,

	// Map Key 只允许字符串
	DefaultMapType: reflect.TypeOf(map[string]any(nil)),

	// 禁止自动解析 Bignum Tag (Tag 2/3)
	BignumTag: cbor.BignumTagForbidden,

	// 忽略时间 Tag (Tag 0/1)，按原始的数字或字符串处理
	TimeTag: cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

func parseCBOR(data []byte) (*Node, error) {
	var v any
	if err := dm.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return fromCBOR(v)
}

func fromCBOR(v any) (*Node, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Scalar(TagBool, strconv.FormatBool(x)), nil
	case string:
		return String(x), nil
	case uint64:
		return Scalar(TagInt, strconv.FormatUint(x, 10)), nil
	case int64:
		return Scalar(TagInt, strconv.FormatInt(x, 10)), nil
	case big.Int:
		return Scalar(TagInt, x.String()), nil
	case *big.Int:
		return Scalar(TagInt, x.String()), nil
	case float64:
		return Scalar(TagFloat, formatFloat(x)), nil
	case float32:
		return Scalar(TagFloat, formatFloat(float64(x))), nil
	case []byte:
		return Scalar(TagBinary, base64.StdEncoding.EncodeToString(x)), nil
	case []any:
		seq := &Node{kind: SequenceNode, items: make([]*Node, 0, len(x))}
		for _, item := range x {
			n, err := fromCBOR(item)
			if err != nil {
				return nil, err
			}
			seq.items = append(seq.items, n)
		}
		return seq, nil
	case map[string]any:
		// 解码后的 map 没有顺序，按键排序保证结果确定
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		m := Mapping()
		for _, k := range keys {
			n, err := fromCBOR(x[k])
			if err != nil {
				return nil, err
			}
			m.Set(k, n)
		}
		return m, nil
	case cbor.Tag:
		return nil, fmt.Errorf("unsupported cbor tag %d", x.Number)
	default:
		return nil, fmt.Errorf("unsupported cbor value of type %T", v)
	}
}

// formatFloat 使用 YAML 的写法表示特殊值
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// 保证文本仍然被识别为浮点数
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		s += ".0"
	}
	return s
}
