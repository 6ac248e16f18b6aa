// Package selector chooses the next speaker of a group chat round. Candidates
// are scored with a weighted linear formula over four features (relevance,
// capability, fairness, continuity); the highest score wins with a
// deterministic roster-order tie-break.
package selector

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/plenum-ai/plenum/model/agent"
	"github.com/plenum-ai/plenum/model/chat"
)

// Weights holds the fixed coefficients of the scoring formula.
type Weights struct {
	Relevance  float64 `json:"relevance" yaml:"relevance"`
	Capability float64 `json:"capability" yaml:"capability"`
	Fairness   float64 `json:"fairness" yaml:"fairness"`
	Continuity float64 `json:"continuity" yaml:"continuity"`
}

// DefaultWeights returns the documented default coefficients.
func DefaultWeights() Weights {
	return Weights{
		Relevance:  0.40,
		Capability: 0.25,
		Fairness:   0.20,
		Continuity: 0.15,
	}
}

// Score captures the per-candidate breakdown; kept so observers can explain a
// selection.
type Score struct {
	Agent      string  `json:"agent"`
	Relevance  float64 `json:"relevance"`
	Capability float64 `json:"capability"`
	Fairness   float64 `json:"fairness"`
	Continuity float64 `json:"continuity"`
	Total      float64 `json:"total"`
}

// Request describes one selection round.
type Request struct {
	Team         *agent.Team
	Session      *chat.Session
	Capabilities []string // capabilities the next turn should cover, may be empty
}

// Service scores a roster against the conversation.
type Service struct {
	weights Weights
}

// New creates a selector; zero-value weights fall back to the defaults.
func New(weights Weights) *Service {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Service{weights: weights}
}

// Select returns the next speaker and the full score breakdown.
func (s *Service) Select(req *Request) (*agent.Agent, []Score, error) {
	if req == nil || req.Team == nil || len(req.Team.Agents) == 0 {
		return nil, nil, errors.New("selector: empty team")
	}
	last := req.Session.LastMessage()
	previous := req.Session.LastSpeaker()

	scores := make([]Score, 0, len(req.Team.Agents))
	for _, candidate := range req.Team.Agents {
		score := Score{
			Agent:      candidate.Name,
			Relevance:  relevance(candidate, last),
			Capability: capability(candidate, req.Capabilities),
			Fairness:   fairness(req.Session, candidate.Name),
			Continuity: continuity(candidate, last),
		}
		score.Total = s.weights.Relevance*score.Relevance +
			s.weights.Capability*score.Capability +
			s.weights.Fairness*score.Fairness +
			s.weights.Continuity*score.Continuity
		scores = append(scores, score)
	}

	best := pick(req.Team, scores, previous)
	return req.Team.Lookup(best), scores, nil
}

// pick applies the tie-break rules: highest total wins; on a tie the previous
// speaker always loses, and remaining ties resolve by roster order.
func pick(team *agent.Team, scores []Score, previous string) string {
	index := make(map[string]int, len(team.Agents))
	for i, a := range team.Agents {
		index[a.Name] = i
	}
	ordered := make([]Score, len(scores))
	copy(ordered, scores)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Total != ordered[j].Total {
			return ordered[i].Total > ordered[j].Total
		}
		iPrev := strings.EqualFold(ordered[i].Agent, previous)
		jPrev := strings.EqualFold(ordered[j].Agent, previous)
		if iPrev != jPrev {
			return jPrev
		}
		return index[ordered[i].Agent] < index[ordered[j].Agent]
	})
	return ordered[0].Agent
}

// relevance is the normalised term overlap between the last message and the
// agent's keywords plus description.
func relevance(candidate *agent.Agent, last *chat.Message) float64 {
	if last == nil || last.Content == "" {
		return 0
	}
	vocabulary := map[string]bool{}
	for _, kw := range candidate.Keywords {
		vocabulary[strings.ToLower(kw)] = true
	}
	for _, term := range terms(candidate.Description) {
		vocabulary[term] = true
	}
	if len(vocabulary) == 0 {
		return 0
	}
	messageTerms := terms(last.Content)
	if len(messageTerms) == 0 {
		return 0
	}
	matched := 0
	for _, term := range messageTerms {
		if vocabulary[term] {
			matched++
		}
	}
	return float64(matched) / float64(len(messageTerms))
}

// capability is the fraction of requested capabilities the agent covers; with
// nothing requested every candidate is equally capable.
func capability(candidate *agent.Agent, requested []string) float64 {
	if len(requested) == 0 {
		return 1
	}
	covered := 0
	for _, capName := range requested {
		if candidate.HasCapability(capName) {
			covered++
		}
	}
	return float64(covered) / float64(len(requested))
}

// fairness rewards agents that have waited longer: an agent that never spoke
// scores 1, the previous speaker scores 0 and the score recovers as
// 1 - 1/(turnsAgo+1).
func fairness(session *chat.Session, agentName string) float64 {
	turnsAgo, spoke := session.TurnsSinceSpoke(agentName)
	if !spoke {
		return 1
	}
	return 1 - 1/float64(turnsAgo+1)
}

// continuity is 1 when the last message addresses the agent with an @mention.
func continuity(candidate *agent.Agent, last *chat.Message) float64 {
	if last == nil {
		return 0
	}
	if last.AddressedTo(candidate.Name) {
		return 1
	}
	return 0
}

func terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) > 2 { // skip stop-word sized tokens
			out = append(out, field)
		}
	}
	return out
}
