// Package api provides E2E/functional tests for the API endpoints
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"medisync-rag/internal/models"
	"medisync-rag/internal/rag"
)

// E2E/Functional Tests - Test the full session flow through the HTTP surface

const (
	notesText = "Discharge notes. Fasting glucose was 182 mg/dL on admission. " +
		"Glucose improved after insulin was started."
	labsMarkdown = "# Vital signs\n\nBlood pressure 150/95 at rest. Pressure was rechecked the next day."
)

func TestE2E_SessionWorkflow(t *testing.T) {
	server, _, llmClient := createTestServer(t)
	llmClient.SetResponse("fasting glucose", "Your sugar level was high when you arrived.")

	session := createSession(t, server, "patient")
	base := "/sessions/" + session.ID

	// Questions before any upload have no index to answer from.
	w := doJSON(server, "POST", base+"/questions", models.QuestionRequest{Question: "What was the fasting glucose?"})
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409 before upload, got %d", w.Code)
	}
	if env := decodeError(t, w); env.Error.Message != "No documents have been indexed yet" {
		t.Errorf("unexpected message %q", env.Error.Message)
	}

	event := uploadTestDocuments(t, server, session.ID)
	if event.Documents != 2 {
		t.Errorf("Expected 2 documents, got %d", event.Documents)
	}
	if len(event.Failures) != 1 || event.Failures[0].Name != "scan.png" {
		t.Errorf("Expected scan.png to be reported as failed, got %+v", event.Failures)
	}
	if event.Segments == 0 || event.Dimension != 4 || event.EmbeddingModel != "mock-embed" {
		t.Errorf("unexpected index event: %+v", event)
	}

	answer := askQuestion(t, server, session.ID, "What was the fasting glucose?")
	if answer.Answer != "Your sugar level was high when you arrived." {
		t.Errorf("unexpected answer %q", answer.Answer)
	}
	if answer.Role != models.RolePatientOrFamily {
		t.Errorf("Expected patient_or_family answer, got %s", answer.Role)
	}
	if len(answer.Sources) == 0 || answer.Sources[0].DocumentName != "notes.txt" {
		t.Fatalf("Expected notes.txt as the best source, got %+v", answer.Sources)
	}
	for i := 1; i < len(answer.Sources); i++ {
		if answer.Sources[i].Score > answer.Sources[i-1].Score {
			t.Errorf("sources not ordered by score: %+v", answer.Sources)
		}
	}
	if !strings.Contains(llmClient.LastPrompt(), "CARING ANSWER:") {
		t.Error("Expected the patient template to be used")
	}
	if !strings.Contains(llmClient.LastPrompt(), "Fasting glucose was 182") {
		t.Error("Expected the retrieved notes in the prompt")
	}

	w = doJSON(server, "PUT", base+"/role", models.RoleRequest{Role: "clinician"})
	if w.Code != http.StatusOK {
		t.Fatalf("Failed to change role: %d", w.Code)
	}
	answer = askQuestion(t, server, session.ID, "Is the blood pressure concerning?")
	if answer.Role != models.RoleClinician {
		t.Errorf("Expected clinician answer, got %s", answer.Role)
	}
	if !strings.Contains(llmClient.LastPrompt(), "TECHNICAL OPINION:") {
		t.Error("Expected the clinician template to be used")
	}
	if answer.Sources[0].DocumentName != "labs.md" {
		t.Errorf("Expected labs.md as the best source, got %s", answer.Sources[0].DocumentName)
	}

	history := getHistory(t, server, session.ID)
	if history.Count != 4 {
		t.Fatalf("Expected 4 turns, got %d", history.Count)
	}
	if history.Turns[0].Speaker != models.SpeakerUser || history.Turns[1].Speaker != models.SpeakerAssistant {
		t.Errorf("unexpected turn order: %+v", history.Turns)
	}
	if history.Turns[0].Content != "What was the fasting glucose?" {
		t.Errorf("unexpected first turn %q", history.Turns[0].Content)
	}

	w = doRequest(server, "GET", base, nil, "")
	var info models.SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.State != string(rag.StateIndexed) || info.Questions != 2 || info.Segments != event.Segments {
		t.Errorf("unexpected session info: %+v", info)
	}

	w = doRequest(server, "DELETE", base+"/history", nil, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 on reset, got %d", w.Code)
	}
	if history := getHistory(t, server, session.ID); history.Count != 0 {
		t.Errorf("Expected empty history after reset, got %d", history.Count)
	}

	// The index survives a conversation reset.
	askQuestion(t, server, session.ID, "What was the fasting glucose?")
}

func uploadTestDocuments(t *testing.T, server *Server, id string) models.IndexReadyEvent {
	t.Helper()
	w := uploadFiles(t, server, id, map[string]string{
		"notes.txt": notesText,
		"labs.md":   labsMarkdown,
		"scan.png":  "\x89PNG",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Failed to upload documents: status %d, body %s", w.Code, w.Body.String())
	}
	var event models.IndexReadyEvent
	if err := json.Unmarshal(w.Body.Bytes(), &event); err != nil {
		t.Fatalf("Failed to unmarshal index event: %v", err)
	}
	return event
}

func askQuestion(t *testing.T, server *Server, id, question string) models.AnswerEvent {
	t.Helper()
	w := doJSON(server, "POST", "/sessions/"+id+"/questions", models.QuestionRequest{Question: question})
	if w.Code != http.StatusOK {
		t.Fatalf("Failed to ask question: status %d, body %s", w.Code, w.Body.String())
	}
	var answer models.AnswerEvent
	if err := json.Unmarshal(w.Body.Bytes(), &answer); err != nil {
		t.Fatalf("Failed to unmarshal answer: %v", err)
	}
	return answer
}

func getHistory(t *testing.T, server *Server, id string) models.HistoryResponse {
	t.Helper()
	w := doRequest(server, "GET", "/sessions/"+id+"/history", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Failed to get history: status %d", w.Code)
	}
	var history models.HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatalf("Failed to unmarshal history: %v", err)
	}
	return history
}

func TestE2E_ErrorHandling(t *testing.T) {
	server, embedder, llmClient := createTestServer(t)
	session := createSession(t, server, "")
	event := uploadTestDocuments(t, server, session.ID)
	askQuestion(t, server, session.ID, "What was the fasting glucose?")

	llmClient.SetShouldFail(true)
	w := doJSON(server, "POST", "/sessions/"+session.ID+"/questions", models.QuestionRequest{Question: "Any allergy?"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 on generator failure, got %d", w.Code)
	}
	if env := decodeError(t, w); !strings.Contains(env.Error.Reason, "mock LLM error") {
		t.Errorf("Expected the cause in the reason, got %+v", env)
	}
	llmClient.SetShouldFail(false)

	// A failed rebuild keeps the previous index.
	embedder.SetShouldFail(true)
	w = uploadFiles(t, server, session.ID, map[string]string{"other.txt": "Heart rate 88."})
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 on embedding failure, got %d", w.Code)
	}
	w = doJSON(server, "POST", "/sessions/"+session.ID+"/questions", models.QuestionRequest{Question: "Any allergy?"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 when the question cannot be embedded, got %d", w.Code)
	}
	embedder.SetShouldFail(false)

	w = doRequest(server, "GET", "/sessions/"+session.ID, nil, "")
	var info models.SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Segments != event.Segments || info.State != string(rag.StateIndexed) {
		t.Errorf("Expected the previous index to survive, got %+v", info)
	}
	if info.Questions != 1 {
		t.Errorf("Failed questions must not be recorded, got %d", info.Questions)
	}
}

func TestE2E_ConcurrentAccess(t *testing.T) {
	server, _, llmClient := createTestServer(t)
	first := createSession(t, server, "")
	second := createSession(t, server, "")
	uploadTestDocuments(t, server, first.ID)

	block := make(chan struct{})
	llmClient.SetBlock(block)

	var wg sync.WaitGroup
	var code int
	wg.Add(1)
	go func() {
		defer wg.Done()
		w := doJSON(server, "POST", "/sessions/"+first.ID+"/questions", models.QuestionRequest{Question: "glucose?"})
		code = w.Code
	}()

	deadline := time.Now().Add(5 * time.Second)
	for llmClient.PromptCount() == 0 {
		if time.Now().After(deadline) {
			close(block)
			t.Fatal("generator was never called")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w := doJSON(server, "POST", "/sessions/"+first.ID+"/questions", models.QuestionRequest{Question: "again?"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 while the session is answering, got %d", w.Code)
	}

	// Other sessions are unaffected.
	w = doRequest(server, "GET", "/sessions/"+second.ID, nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for an idle session, got %d", w.Code)
	}

	close(block)
	wg.Wait()
	if code != http.StatusOK {
		t.Errorf("Expected the blocked question to complete, got %d", code)
	}
}

func TestE2E_SessionIsolation(t *testing.T) {
	server, _, _ := createTestServer(t)
	first := createSession(t, server, "")
	second := createSession(t, server, "")

	uploadTestDocuments(t, server, first.ID)
	askQuestion(t, server, first.ID, "What was the fasting glucose?")

	w := doJSON(server, "POST", "/sessions/"+second.ID+"/questions", models.QuestionRequest{Question: "What was the fasting glucose?"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected the second session to have no index, got %d", w.Code)
	}
	if history := getHistory(t, server, second.ID); history.Count != 0 {
		t.Errorf("Expected empty history in the second session, got %d", history.Count)
	}
}

func TestE2E_InvalidEndpoints(t *testing.T) {
	server, _, _ := createTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/nonexistent", http.StatusNotFound},
		{"PATCH", "/sessions", http.StatusMethodNotAllowed},
		{"GET", "/sessions/abc/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := doRequest(server, tt.method, tt.path, nil, "")
		if w.Code != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, w.Code)
		}
	}
}
