package gate_test

import (
	"context"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/joho/godotenv"

	"github.com/gatecode-ai/gatecode/internal/agent"
	"github.com/gatecode-ai/gatecode/internal/mode"
	"github.com/gatecode-ai/gatecode/internal/permission"
	"github.com/gatecode-ai/gatecode/internal/server"
	"github.com/gatecode-ai/gatecode/internal/storage"
	"github.com/gatecode-ai/gatecode/internal/tool"
)

var ctx = context.Background()

func TestGate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Gate Suite")
}

var _ = BeforeSuite(func() {
	_ = godotenv.Load("../../.env")
})

// gateHarness is one fully wired gate stack behind an httptest server.
type gateHarness struct {
	workDir string
	perms   *permission.Broker
	modes   *mode.Controller
	tools   *tool.Registry
	http    *httptest.Server
}

func newGateHarness(workDir string) *gateHarness {
	perms := permission.NewBroker()
	modes := mode.NewController()

	registry := tool.DefaultRegistry(tool.Deps{
		WorkDir: workDir,
		Perms:   perms,
		Modes:   modes,
		Store:   storage.New(workDir + "/.storage"),
		Agents:  agent.NewRegistry(),
	})

	srv := server.New(server.DefaultConfig(), perms, modes, registry, nil)

	return &gateHarness{
		workDir: workDir,
		perms:   perms,
		modes:   modes,
		tools:   registry,
		http:    httptest.NewServer(srv.Router()),
	}
}

func (h *gateHarness) close() {
	h.http.Close()
}
