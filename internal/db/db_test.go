package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseName(t *testing.T) {
	name, err := databaseName("mongodb://user:pw@localhost:27017/games?authSource=admin")
	assert.NoError(t, err)
	assert.Equal(t, "games", name)

	name, err = databaseName("mongodb://localhost:27017")
	assert.NoError(t, err)
	assert.Equal(t, defaultMongoDatabase, name)

	_, err = databaseName("mongodb://%zz")
	assert.Error(t, err)
}
