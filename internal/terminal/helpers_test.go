package terminal

import (
	"context"

	"github.com/ashureev/cgpt/internal/agent"
	"github.com/ashureev/cgpt/internal/chat"
	"github.com/ashureev/cgpt/internal/domain"
	"github.com/ashureev/cgpt/internal/store"
)

// echoCompleter answers every turn with "re: <last message>".
type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, msgs []domain.Message) (agent.Reply, error) {
	return agent.Answer(domain.AssistantMessage("re: " + msgs[len(msgs)-1].Content)), nil
}

func (echoCompleter) Name() string { return "echo" }

func newTestChatService() (*chat.Service, *store.MemoryStore) {
	repo := store.NewMemory()
	return chat.NewService(repo, echoCompleter{}), repo
}
