package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
)

func TestRollbarLogger(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewRollbarLogger(log.New(buf, "", 0), core.NewTestConfig())

	usr := user.User{ID: "1", FullName: "Jane", Email: "jane@x.io"}
	args := logger.prepare("saving", []interface{}{errors.New("boom"), usr, map[string]interface{}{"k": 1}})
	assert.Len(t, args, 3)
	assert.Equal(t, "saving", args[0])

	logger.Warn("removing stored file", errors.New("gone"), usr.Identity())
	assert.Contains(t, buf.String(), "removing stored file")
	assert.Contains(t, buf.String(), "gone")
}
