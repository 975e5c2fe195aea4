package gate_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gatecode-ai/gatecode/internal/event"
	"github.com/gatecode-ai/gatecode/internal/permission"
	"github.com/gatecode-ai/gatecode/internal/tool"
)

// eventRecorder collects asked/replied events from the global bus.
type eventRecorder struct {
	mu      sync.Mutex
	asked   []event.PermissionAskedData
	replied []event.PermissionRepliedData
}

func recordEvents() (*eventRecorder, func()) {
	rec := &eventRecorder{}
	unsubAsked := event.Subscribe(event.PermissionAsked, func(e event.Event) {
		if data, ok := e.Data.(event.PermissionAskedData); ok {
			rec.mu.Lock()
			rec.asked = append(rec.asked, data)
			rec.mu.Unlock()
		}
	})
	unsubReplied := event.Subscribe(event.PermissionReplied, func(e event.Event) {
		if data, ok := e.Data.(event.PermissionRepliedData); ok {
			rec.mu.Lock()
			rec.replied = append(rec.replied, data)
			rec.mu.Unlock()
		}
	})
	return rec, func() {
		unsubAsked()
		unsubReplied()
	}
}

func (r *eventRecorder) askedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.asked)
}

func (r *eventRecorder) repliedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replied)
}

func (r *eventRecorder) lastReplied() event.PermissionRepliedData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replied[len(r.replied)-1]
}

func postJSON(url string, body any, out any) int {
	jsonBody, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())

	resp, err := http.Post(url, "application/json", bytes.NewReader(jsonBody))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	if out != nil {
		Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
	}
	return resp.StatusCode
}

func getJSON(url string, out any) int {
	resp, err := http.Get(url)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	if out != nil {
		Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
	}
	return resp.StatusCode
}

// executeWrite dispatches the write tool over HTTP and delivers the boundary
// response on the returned channel.
func executeWrite(h *gateHarness, sessionID, relPath, content string) <-chan tool.Response {
	done := make(chan tool.Response, 1)
	go func() {
		defer GinkgoRecover()
		input, _ := json.Marshal(map[string]string{
			"filePath": relPath,
			"content":  content,
		})
		var resp tool.Response
		postJSON(h.http.URL+"/tool/write", map[string]any{
			"sessionID": sessionID,
			"input":     json.RawMessage(input),
		}, &resp)
		done <- resp
	}()
	return done
}

func pendingOf(h *gateHarness) []permission.Request {
	var out struct {
		Pending []permission.Request `json:"pending"`
	}
	Expect(getJSON(h.http.URL+"/permission", &out)).To(Equal(http.StatusOK))
	return out.Pending
}

var _ = Describe("Permission gating end to end", func() {
	var h *gateHarness

	BeforeEach(func() {
		dir, err := os.MkdirTemp("", "gate-e2e-*")
		Expect(err).NotTo(HaveOccurred())
		dir, err = filepath.EvalSymlinks(dir)
		Expect(err).NotTo(HaveOccurred())

		h = newGateHarness(dir)
		DeferCleanup(func() {
			h.close()
			os.RemoveAll(dir)
		})
	})

	It("rejects a write with user feedback and publishes replied exactly once", func() {
		rec, unsub := recordEvents()
		DeferCleanup(unsub)

		done := executeWrite(h, "s1", "notes.txt", "hello")

		var pending []permission.Request
		Eventually(func() []permission.Request {
			pending = pendingOf(h)
			return pending
		}, 3*time.Second, 20*time.Millisecond).Should(HaveLen(1))

		Expect(string(pending[0].Kind)).To(Equal("edit"))
		Expect(pending[0].Patterns).To(ConsistOf("notes.txt"))
		Expect(pending[0].SessionID).To(Equal("s1"))

		Eventually(rec.askedCount, 2*time.Second).Should(Equal(1))

		status := postJSON(h.http.URL+"/permission/"+pending[0].ID, map[string]string{
			"decision": "reject",
			"message":  "too destructive",
		}, nil)
		Expect(status).To(Equal(http.StatusOK))

		var resp tool.Response
		Eventually(done, 3*time.Second).Should(Receive(&resp))
		Expect(resp.Success).To(BeFalse())
		Expect(resp.Output).To(Equal("Permission denied: too destructive"))

		Expect(filepath.Join(h.workDir, "notes.txt")).NotTo(BeAnExistingFile())

		Eventually(rec.repliedCount, 2*time.Second).Should(Equal(1))
		Expect(rec.lastReplied().Decision).To(Equal("reject"))
		Expect(rec.lastReplied().Message).To(Equal("too destructive"))

		// A second respond for the same id must be a no-op.
		postJSON(h.http.URL+"/permission/"+pending[0].ID, map[string]string{
			"decision": "once",
		}, nil)
		Consistently(rec.repliedCount, 300*time.Millisecond).Should(Equal(1))
	})

	It("memoizes always approvals so repeat writes skip the prompt", func() {
		rec, unsub := recordEvents()
		DeferCleanup(unsub)

		done := executeWrite(h, "s1", "notes.txt", "v1")

		var pending []permission.Request
		Eventually(func() []permission.Request {
			pending = pendingOf(h)
			return pending
		}, 3*time.Second, 20*time.Millisecond).Should(HaveLen(1))

		postJSON(h.http.URL+"/permission/"+pending[0].ID, map[string]string{
			"decision": "always",
		}, nil)

		var resp tool.Response
		Eventually(done, 3*time.Second).Should(Receive(&resp))
		Expect(resp.Success).To(BeTrue(), resp.Output)
		Expect(filepath.Join(h.workDir, "notes.txt")).To(BeAnExistingFile())

		// The same path in the same session goes straight through.
		done = executeWrite(h, "s1", "notes.txt", "v2")
		Eventually(done, 3*time.Second).Should(Receive(&resp))
		Expect(resp.Success).To(BeTrue(), resp.Output)
		Expect(pendingOf(h)).To(BeEmpty())
		Eventually(rec.askedCount, 2*time.Second).Should(Equal(1))

		data, err := os.ReadFile(filepath.Join(h.workDir, "notes.txt"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("v2"))
	})

	It("hides mutating tools behind the mode gate over the API", func() {
		req, err := http.NewRequest(http.MethodPut, h.http.URL+"/mode",
			bytes.NewReader([]byte(`{"mode":"readonly"}`)))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var tools struct {
			Mode  string `json:"mode"`
			Tools []struct {
				ID string `json:"id"`
			} `json:"tools"`
		}
		Expect(getJSON(h.http.URL+"/tool", &tools)).To(Equal(http.StatusOK))
		Expect(tools.Mode).To(Equal("readonly"))

		ids := make([]string, 0, len(tools.Tools))
		for _, t := range tools.Tools {
			ids = append(ids, t.ID)
		}
		Expect(ids).To(ContainElement("read"))
		Expect(ids).NotTo(ContainElement("write"))
		Expect(ids).NotTo(ContainElement("bash"))

		var execResp tool.Response
		input, _ := json.Marshal(map[string]string{"filePath": "x.txt", "content": "nope"})
		postJSON(h.http.URL+"/tool/write", map[string]any{
			"sessionID": "s1",
			"input":     json.RawMessage(input),
		}, &execResp)
		Expect(execResp.Success).To(BeFalse())
		Expect(execResp.Output).To(Equal(fmt.Sprintf("tool %s is not available in %s mode", "write", "readonly")))
		Expect(filepath.Join(h.workDir, "x.txt")).NotTo(BeAnExistingFile())
	})
})
