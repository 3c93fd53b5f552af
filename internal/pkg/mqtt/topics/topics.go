// Package topics defines the broker routing contract between vehicles and
// the relay. All topics live under a configurable root.
package topics

import (
	"fmt"
	"strings"
)

// Upstream: vehicle -> relay.
const (
	// Status is the segment for status batch publications.
	// Pattern: {root}/status/{company}/{car}
	Status = "status"
)

// Downstream: relay -> vehicle.
const (
	// Command is the segment for pushed command batches.
	// Pattern: {root}/command/{company}/{car}
	Command = "command"
)

// StatusFilter returns the subscription filter covering every car's status
// topic under the root.
func StatusFilter(root string) string {
	return strings.TrimSuffix(root, "/") + "/" + Status + "/+/+"
}

// CommandTopic returns the publication topic for one car's commands.
func CommandTopic(root, company, car string) string {
	return fmt.Sprintf("%s/%s/%s/%s", strings.TrimSuffix(root, "/"), Command, company, car)
}

// ParseStatus extracts company and car from a status topic.
func ParseStatus(root, topic string) (company, car string, err error) {
	prefix := strings.TrimSuffix(root, "/") + "/" + Status + "/"
	suffix := strings.TrimPrefix(topic, prefix)
	if suffix == topic {
		return "", "", fmt.Errorf("topic outside status tree: %s", topic)
	}
	parts := strings.Split(suffix, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected %s{company}/{car}, got: %s", prefix, topic)
	}
	return parts[0], parts[1], nil
}
