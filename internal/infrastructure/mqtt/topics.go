package mqtt

import "fmt"

// Topic prefixes for the specification store.
//
// Lifecycle events use the scheme
// specstore/core/specification/{token}/{event}.
const (
	// TopicPrefixCore is the base for all store topics.
	TopicPrefixCore = "specstore/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "specstore/system"
)

// Topics provides builders for the store's MQTT topics.
//
//	topic := mqtt.Topics{}.SpecificationEvent("spec-001", "created")
//	// "specstore/core/specification/spec-001/created"
type Topics struct{}

// SpecificationEvent returns the topic for one lifecycle event of a
// specification.
func (Topics) SpecificationEvent(token, event string) string {
	return fmt.Sprintf("%s/specification/%s/%s", TopicPrefixCore, token, event)
}

// SpecificationEvents returns a wildcard for every event of one
// specification.
func (Topics) SpecificationEvents(token string) string {
	return fmt.Sprintf("%s/specification/%s/+", TopicPrefixCore, token)
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
