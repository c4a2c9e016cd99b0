package decoder

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"eventRelay/internal/registry"
)

// MapDefinition decodes any event of a parsed ABI into a map keyed by
// argument name. Integers wider than 64 bits become decimal strings and
// addresses, hashes and byte strings become 0x hex, so the payload stays
// JSON friendly.
func MapDefinition(event abi.Event) registry.EventDefinition[map[string]any] {
	return registry.EventDefinition[map[string]any]{
		Name:    event.Name,
		TopicID: event.ID,
		Decode: func(topics []common.Hash, data []byte) (map[string]any, error) {
			return decodeMap(event, topics, data)
		},
	}
}

func decodeMap(event abi.Event, topics []common.Hash, data []byte) (map[string]any, error) {
	indexedTopics, err := indexedTopics(event, topics)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(event.Inputs))
	if err := event.Inputs.UnpackIntoMap(out, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if err := abi.ParseTopicsIntoMap(out, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	for name, value := range out {
		out[name] = normalize(value)
	}
	return out, nil
}

func normalize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case *big.Int:
		if v == nil {
			return nil
		}
		return v.String()
	case common.Address:
		return v.Hex()
	case common.Hash:
		return v.Hex()
	case []byte:
		return hexutil.Encode(v)
	case string, bool:
		return v
	case int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return v
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			buf := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(buf), rv)
			return hexutil.Encode(buf)
		}
		return normalizeList(rv)
	case reflect.Slice:
		return normalizeList(rv)
	case reflect.Struct:
		fields := make(map[string]any, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			field := rv.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			name := field.Name
			if tag := field.Tag.Get("json"); tag != "" && tag != "-" {
				name = tag
			}
			fields[name] = normalize(rv.Field(i).Interface())
		}
		return fields
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	default:
		return fmt.Sprint(value)
	}
}

func normalizeList(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = normalize(rv.Index(i).Interface())
	}
	return out
}
