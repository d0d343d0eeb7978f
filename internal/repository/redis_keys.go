package repository

import "strconv"

// KeyPrefix - префиксы ключей Redis
type KeyPrefix string

const (
	PrefixLink    KeyPrefix = "link"    // link:shortCode -> hash
	PrefixLinkID  KeyPrefix = "link:id" // link:id:ID -> shortCode
	PrefixLinkSeq KeyPrefix = "link:seq"
	PrefixCreated KeyPrefix = "links:created" // zset, score = ID
)

// KeyBuilder - построитель ключей
type KeyBuilder struct {
	namespace string
}

func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

// Build создает ключ с префиксом и опциональным namespace
func (k *KeyBuilder) Build(prefix KeyPrefix, parts ...string) string {
	key := string(prefix)

	if k.namespace != "" {
		key = k.namespace + ":" + key
	}

	for _, part := range parts {
		key += ":" + part
	}

	return key
}

func (k *KeyBuilder) Link(shortCode string) string {
	return k.Build(PrefixLink, shortCode)
}

func (k *KeyBuilder) LinkID(id int64) string {
	return k.Build(PrefixLinkID, strconv.FormatInt(id, 10))
}

func (k *KeyBuilder) Sequence() string {
	return k.Build(PrefixLinkSeq)
}

func (k *KeyBuilder) Created() string {
	return k.Build(PrefixCreated)
}
