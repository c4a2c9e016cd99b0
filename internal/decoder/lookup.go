package decoder

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"eventRelay/internal/registry"
	"eventRelay/internal/storage"
)

var (
	// ErrUnknownEvent is returned when the ABI has no event with the requested name.
	ErrUnknownEvent = errors.New("event not found in abi")
	// ErrAnonymousEvent is returned for anonymous events, which have no topic id to route on.
	ErrAnonymousEvent = errors.New("anonymous events cannot be routed")
)

// Binding is the decoder chosen for one event of a contract ABI.
type Binding struct {
	Name    string
	TopicID common.Hash
	Decoder registry.Decoder
	// Typed is set when a built-in decoder with a concrete payload was chosen.
	Typed bool

	route routeFunc
}

type routeFunc func(contract registry.ContractInfo, sinks []storage.Storage) (*registry.EventInformation, error)

// Route builds the registry route of the event for contract. Decoded batches
// are written to sinks as event records.
func (b Binding) Route(contract registry.ContractInfo, sinks ...storage.Storage) (*registry.EventInformation, error) {
	if b.route == nil {
		return nil, fmt.Errorf("%s: %w", b.Name, registry.ErrNoDecoder)
	}
	return b.route(contract, sinks)
}

// bind pairs the erased decoder of def with a route whose handler receives
// the same payload type.
func bind[T any](def registry.EventDefinition[T]) (registry.Decoder, routeFunc) {
	return def.Decoder(), func(contract registry.ContractInfo, sinks []storage.Storage) (*registry.EventInformation, error) {
		return registry.NewEvent(def, contract, storage.NewHandler[T](contract.Name, def.Name, def.TopicID, sinks...))
	}
}

type builtinDecoder struct {
	event   abi.Event
	decoder registry.Decoder
	route   routeFunc
}

func builtin[T any](event abi.Event, def registry.EventDefinition[T]) builtinDecoder {
	decoder, route := bind(def)
	return builtinDecoder{event: event, decoder: decoder, route: route}
}

var (
	builtins     []builtinDecoder
	builtinsOnce sync.Once
	builtinsErr  error
)

func loadBuiltins() ([]builtinDecoder, error) {
	builtinsOnce.Do(func() {
		pool, err := NewV3PoolDecoder()
		if err != nil {
			builtinsErr = err
			return
		}
		token, err := NewERC20Decoder()
		if err != nil {
			builtinsErr = err
			return
		}
		builtins = []builtinDecoder{
			builtin(pool.poolABI.Events["Swap"], pool.Swap()),
			builtin(pool.poolABI.Events["Mint"], pool.Mint()),
			builtin(pool.poolABI.Events["Burn"], pool.Burn()),
			builtin(pool.poolABI.Events["Collect"], pool.Collect()),
			builtin(token.tokenABI.Events["Transfer"], token.Transfer()),
			builtin(token.tokenABI.Events["Approval"], token.Approval()),
		}
	})
	return builtins, builtinsErr
}

// ForEvent picks a decoder for the named event. A built-in typed decoder is
// used when the event has the same signature and indexed layout; ERC721
// Transfer shares its id with ERC20 Transfer but indexes the token id, so it
// falls back to the map decoder.
func ForEvent(parsed abi.ABI, name string) (Binding, error) {
	event, ok := parsed.Events[name]
	if !ok {
		return Binding{}, fmt.Errorf("%s: %w", name, ErrUnknownEvent)
	}
	if event.Anonymous {
		return Binding{}, fmt.Errorf("%s: %w", name, ErrAnonymousEvent)
	}

	known, err := loadBuiltins()
	if err != nil {
		return Binding{}, err
	}
	for _, b := range known {
		if sameLayout(b.event, event) {
			return Binding{Name: event.Name, TopicID: event.ID, Decoder: b.decoder, Typed: true, route: b.route}, nil
		}
	}

	decoder, route := bind(MapDefinition(event))
	return Binding{
		Name:    event.Name,
		TopicID: event.ID,
		Decoder: decoder,
		route:   route,
	}, nil
}
