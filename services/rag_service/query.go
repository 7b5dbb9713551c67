package rag_service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/serisow/lesocle-kb/kb_type"
	"github.com/serisow/lesocle-kb/services/llm_service"
)

// RefusalPhrase is the answer prescribed when the knowledge base holds
// nothing relevant.
const RefusalPhrase = "抱歉，我在知识库中没有找到相关信息。"

const (
	groundingK      = 5
	groundingFetchK = 10
	diversityWeight = 0.7
	citationK       = 5
	minSourceScore  = 0.5
)

const groundedPromptTemplate = `请基于以下已知信息，简洁和准确地回答用户的问题。如果无法从中得到答案，请说 "` + RefusalPhrase + `"

已知信息：
%s

用户问题：%s

请注意：
1. 只使用已知信息中的内容来回答
2. 如果已知信息中没有相关内容，请直接说明
3. 不要编造或推测任何信息
4. 如果信息不完整，可以说明信息仅供参考

回答：`

const condensePromptTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

// QueryPipeline answers questions from the knowledge base. Grounding and
// citations come from two separate searches: the cited sources are not
// necessarily the chunks the answer was generated from.
type QueryPipeline struct {
	store  *VectorStore
	chat   llm_service.ChatService
	logger *slog.Logger
}

func NewQueryPipeline(store *VectorStore, chat llm_service.ChatService, logger *slog.Logger) *QueryPipeline {
	return &QueryPipeline{
		store:  store,
		chat:   chat,
		logger: logger,
	}
}

func (p *QueryPipeline) Answer(ctx context.Context, query string, history []kb_type.ChatTurn) (*kb_type.QueryResponse, error) {
	question := query
	if len(history) > 0 {
		condensed, err := p.condenseQuestion(ctx, query, history)
		if err != nil {
			return nil, err
		}
		question = condensed
	}

	grounding, err := p.store.SearchDiverse(ctx, question, groundingK, groundingFetchK, diversityWeight)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Grounding chunks selected",
		slog.String("question", question),
		slog.Int("count", len(grounding)),
		slog.String("chunks", spew.Sdump(grounding)))

	answer := RefusalPhrase
	if len(grounding) > 0 {
		messages := append(historyMessages(history), llm_service.Message{
			Role:    llm_service.RoleUser,
			Content: BuildGroundedPrompt(grounding, question),
		})
		answer, err = p.chat.Chat(ctx, messages)
		if err != nil {
			return nil, newKBError(ErrGeneration, err)
		}
	} else {
		p.logger.Info("No grounding found, answering with refusal", slog.String("question", question))
	}

	sources, err := p.citations(ctx, query)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Query answered",
		slog.Int("history_turns", len(history)),
		slog.Int("grounding", len(grounding)),
		slog.Int("sources", len(sources)))

	return &kb_type.QueryResponse{
		Answer:  answer,
		Sources: sources,
	}, nil
}

// citations runs its own scored search for query and keeps the excerpts
// whose normalised similarity reaches minSourceScore.
func (p *QueryPipeline) citations(ctx context.Context, query string) ([]kb_type.SourceExcerpt, error) {
	scored, err := p.store.SearchWithScore(ctx, query, citationK)
	if err != nil {
		return nil, err
	}

	sources := []kb_type.SourceExcerpt{}
	for _, sc := range scored {
		score := NormalizeDistance(sc.Distance)
		if score < minSourceScore {
			continue
		}
		sources = append(sources, kb_type.SourceExcerpt{
			Content: sc.Content,
			Score:   RoundScore(score),
		})
	}
	return sources, nil
}

func (p *QueryPipeline) condenseQuestion(ctx context.Context, query string, history []kb_type.ChatTurn) (string, error) {
	prompt := fmt.Sprintf(condensePromptTemplate, formatHistory(history), query)
	condensed, err := p.chat.Chat(ctx, []llm_service.Message{
		{Role: llm_service.RoleUser, Content: prompt},
	})
	if err != nil {
		return "", newKBError(ErrGeneration, fmt.Errorf("failed to condense question: %w", err))
	}
	condensed = strings.TrimSpace(condensed)
	if condensed == "" {
		return query, nil
	}
	p.logger.Debug("Condensed follow-up question",
		slog.String("query", query),
		slog.String("standalone", condensed))
	return condensed, nil
}

// BuildGroundedPrompt embeds the chunks as known information ahead of the
// question.
func BuildGroundedPrompt(chunks []kb_type.Chunk, question string) string {
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	return fmt.Sprintf(groundedPromptTemplate, strings.Join(contents, "\n\n"), question)
}

func formatHistory(history []kb_type.ChatTurn) string {
	var sb strings.Builder
	for _, turn := range history {
		sb.WriteString("\nHuman: ")
		sb.WriteString(turn.Question)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(turn.Answer)
	}
	return sb.String()
}

func historyMessages(history []kb_type.ChatTurn) []llm_service.Message {
	messages := make([]llm_service.Message, 0, 2*len(history)+1)
	for _, turn := range history {
		messages = append(messages,
			llm_service.Message{Role: llm_service.RoleUser, Content: turn.Question},
			llm_service.Message{Role: llm_service.RoleAssistant, Content: turn.Answer},
		)
	}
	return messages
}
