package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type TopicKind string

const (
	TopicConversation TopicKind = "conversation"
	TopicThread       TopicKind = "thread"
	TopicPersonal     TopicKind = "user"
)

// TargetType names the kind of content a comment thread or favorite points at.
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetProfile TargetType = "profile"
)

func (t TargetType) Valid() bool {
	return t == TargetPost || t == TargetProfile
}

// TopicKey identifies a broadcast group. It is comparable and safe to use as a map key.
//
// [CANONICAL_FORM]
//   - conversation: "<lower-uuid>_<higher-uuid>" so both participants resolve to the same key.
//   - thread:       "<target-type>:<target-id>".
//   - user:         "<uuid>" (the personal channel of one identity).
type TopicKey struct {
	Kind   TopicKind
	Target string
}

// ConversationTopic returns the order-independent topic of a direct conversation.
func ConversationTopic(a, b uuid.UUID) TopicKey {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return TopicKey{Kind: TopicConversation, Target: x + "_" + y}
}

// ThreadTopic returns the comment thread topic of a piece of content.
func ThreadTopic(targetType TargetType, targetID string) TopicKey {
	return TopicKey{Kind: TopicThread, Target: string(targetType) + ":" + targetID}
}

// PersonalTopic returns the personal channel of an identity.
func PersonalTopic(userID uuid.UUID) TopicKey {
	return TopicKey{Kind: TopicPersonal, Target: userID.String()}
}

func (k TopicKey) IsZero() bool { return k.Kind == "" && k.Target == "" }

func (k TopicKey) String() string {
	return string(k.Kind) + "/" + k.Target
}

// Participants returns both sides of a conversation topic.
func (k TopicKey) Participants() (uuid.UUID, uuid.UUID, bool) {
	if k.Kind != TopicConversation {
		return uuid.Nil, uuid.Nil, false
	}
	left, right, ok := strings.Cut(k.Target, "_")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	a, errA := uuid.Parse(left)
	b, errB := uuid.Parse(right)
	if errA != nil || errB != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return a, b, true
}

// Includes reports whether userID is a participant of a conversation topic.
func (k TopicKey) Includes(userID uuid.UUID) bool {
	a, b, ok := k.Participants()
	return ok && (a == userID || b == userID)
}

// Validate rejects unsupported kinds and malformed targets.
func (k TopicKey) Validate() error {
	switch k.Kind {
	case TopicConversation:
		a, b, ok := k.Participants()
		if !ok {
			return fmt.Errorf("conversation topic %q: %w", k.Target, ErrInvalidTarget)
		}
		if a == b {
			return fmt.Errorf("conversation with self: %w", ErrInvalidTarget)
		}
		if ConversationTopic(a, b) != k {
			return fmt.Errorf("conversation topic %q is not canonical: %w", k.Target, ErrInvalidTarget)
		}
	case TopicThread:
		typ, id, ok := strings.Cut(k.Target, ":")
		if !ok || id == "" || !TargetType(typ).Valid() {
			return fmt.Errorf("thread topic %q: %w", k.Target, ErrInvalidTarget)
		}
	case TopicPersonal:
		if _, err := uuid.Parse(k.Target); err != nil {
			return fmt.Errorf("personal topic %q: %w", k.Target, ErrInvalidTarget)
		}
	default:
		return fmt.Errorf("topic kind %q: %w", k.Kind, ErrInvalidTarget)
	}
	return nil
}

// ParseTopicKey parses the String form "<kind>/<target>".
func ParseTopicKey(s string) (TopicKey, error) {
	kind, target, ok := strings.Cut(s, "/")
	if !ok {
		return TopicKey{}, fmt.Errorf("topic %q: %w", s, ErrInvalidTarget)
	}
	k := TopicKey{Kind: TopicKind(kind), Target: target}
	if k.Kind == TopicConversation {
		// accept either participant order from clients
		if left, right, ok := strings.Cut(target, "_"); ok {
			a, errA := uuid.Parse(left)
			b, errB := uuid.Parse(right)
			if errA == nil && errB == nil {
				k = ConversationTopic(a, b)
			}
		}
	}
	if err := k.Validate(); err != nil {
		return TopicKey{}, err
	}
	return k, nil
}

func (k TopicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *TopicKey) UnmarshalText(b []byte) error {
	parsed, err := ParseTopicKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
