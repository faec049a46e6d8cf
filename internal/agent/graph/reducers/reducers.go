package reducers

import (
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/pocketwise/server/internal/agent/model"
)

// MergeFunc combines a node's partial value for one field with the field's
// current value and returns the new value.
type MergeFunc func(old, partial any) (any, error)

// field couples struct access with the merge behaviour for one state field.
type field struct {
	get   func(*model.ConversationState) any
	set   func(*model.ConversationState, any) error
	merge MergeFunc
}

// Registry is the explicit field-name → merge-function table. It is built
// once at startup; merge behaviour is never inferred from type metadata.
type Registry struct {
	fields map[string]field
}

// NewRegistry builds the registry for every ConversationState field:
// messages and tool_call_history append, everything else is
// last-write-wins.
func NewRegistry() *Registry {
	return &Registry{fields: map[string]field{
		model.FieldMessages: {
			get: func(s *model.ConversationState) any { return s.Messages },
			set: func(s *model.ConversationState, v any) error {
				msgs, ok := v.([]*schema.Message)
				if !ok {
					return fmt.Errorf("messages: unexpected merged type %T", v)
				}
				s.Messages = msgs
				return nil
			},
			merge: MergeMessages,
		},
		model.FieldToolCallHistory: {
			get: func(s *model.ConversationState) any { return s.ToolCallHistory },
			set: func(s *model.ConversationState, v any) error {
				recs, ok := v.([]model.ToolCallRecord)
				if !ok {
					return fmt.Errorf("tool_call_history: unexpected merged type %T", v)
				}
				s.ToolCallHistory = recs
				return nil
			},
			merge: MergeToolCallHistory,
		},
		model.FieldUserProfile: {
			get: func(s *model.ConversationState) any { return s.UserProfile },
			set: func(s *model.ConversationState, v any) error {
				p, ok := v.(model.Profile)
				if !ok {
					return fmt.Errorf("user_profile: unexpected merged type %T", v)
				}
				s.UserProfile = p
				return nil
			},
			merge: lastWriteWins[model.Profile]("user_profile"),
		},
		model.FieldLastIntent: {
			get: func(s *model.ConversationState) any { return s.LastIntent },
			set: func(s *model.ConversationState, v any) error {
				it, ok := v.(model.Intent)
				if !ok {
					return fmt.Errorf("last_intent: unexpected merged type %T", v)
				}
				s.LastIntent = it
				return nil
			},
			merge: lastWriteWins[model.Intent]("last_intent"),
		},
		model.FieldUserID: {
			get: func(s *model.ConversationState) any { return s.UserID },
			set: func(s *model.ConversationState, v any) error {
				id, ok := v.(string)
				if !ok {
					return fmt.Errorf("user_id: unexpected merged type %T", v)
				}
				s.UserID = id
				return nil
			},
			merge: lastWriteWins[string]("user_id"),
		},
	}}
}

// Apply folds a partial update into the state in place. Fields absent from
// the update stay untouched; an empty update is a no-op.
func (r *Registry) Apply(state *model.ConversationState, update model.StateUpdate) error {
	for name, partial := range update {
		f, ok := r.fields[name]
		if !ok {
			return fmt.Errorf("no reducer registered for field %q", name)
		}
		merged, err := f.merge(f.get(state), partial)
		if err != nil {
			return fmt.Errorf("reduce %s: %w", name, err)
		}
		if err := f.set(state, merged); err != nil {
			return err
		}
	}
	return nil
}

// MergeMessages appends partial messages to the existing ordered sequence.
// A model.ReplaceMessages value instead replaces the whole window; that is
// the truncation node's explicit full-sequence update.
func MergeMessages(old, partial any) (any, error) {
	existing, _ := old.([]*schema.Message)
	switch v := partial.(type) {
	case nil:
		return existing, nil
	case model.ReplaceMessages:
		replaced := make([]*schema.Message, len(v))
		copy(replaced, v)
		return replaced, nil
	case *schema.Message:
		if v == nil {
			return existing, nil
		}
		return appendMessages(existing, []*schema.Message{v}), nil
	case []*schema.Message:
		return appendMessages(existing, v), nil
	default:
		return nil, fmt.Errorf("unsupported partial type %T", partial)
	}
}

func appendMessages(existing, delta []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(existing)+len(delta))
	out = append(out, existing...)
	out = append(out, delta...)
	return out
}

// MergeToolCallHistory appends records in order; nil or absent partials
// count as empty.
func MergeToolCallHistory(old, partial any) (any, error) {
	existing, _ := old.([]model.ToolCallRecord)
	switch v := partial.(type) {
	case nil:
		return existing, nil
	case model.ToolCallRecord:
		return append(append([]model.ToolCallRecord{}, existing...), v), nil
	case []model.ToolCallRecord:
		return append(append([]model.ToolCallRecord{}, existing...), v...), nil
	default:
		return nil, fmt.Errorf("unsupported partial type %T", partial)
	}
}

// lastWriteWins replaces the old value whole when the partial carries the
// expected type.
func lastWriteWins[T any](name string) MergeFunc {
	return func(_, partial any) (any, error) {
		v, ok := partial.(T)
		if !ok {
			return nil, fmt.Errorf("%s: unsupported partial type %T", name, partial)
		}
		return v, nil
	}
}
