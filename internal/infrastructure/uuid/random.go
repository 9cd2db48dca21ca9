package uuid

import guuid "github.com/google/uuid"

// RandomGenerator RFC 4122 version 4 ids, used where ids leave the service
type RandomGenerator struct{}

var _ Generator = RandomGenerator{}

// Generate generate UUID
func (RandomGenerator) Generate() (string, error) {
	id, err := guuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
