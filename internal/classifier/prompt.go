package classifier

import (
	"google.golang.org/genai"

	"github.com/nexus-chain/nexus/internal/intent"
)

const systemInstruction = `You parse natural-language commands for the Nexus multi-chain dashboard into an ordered SEQUENCE of intents.
Users move tokens between chains, mint NFTs and vote in a DAO.

Targets:
- "Alice" -> "chain_alice"
- "Bob" -> "chain_bob"
- "NFT" or "Collection" -> "app_nft"
- "DAO" or "Proposal" -> "app_dao"

Intent types:
- token transfer -> TRANSFER
- create or mint an NFT -> MINT_NFT
- vote or propose in the DAO -> VOTE_DAO
- general question -> QUERY
- anything else -> UNKNOWN

Confidence (0.0 to 1.0), start at 0.0:
+0.4 when the action is stated explicitly (transfer, send, pay, mint, vote).
+0.3 when the target is named and resolvable (Alice, Bob, NFT, DAO).
+0.3 when every required parameter is present:
    TRANSFER needs amount; an amount without a resolvable target earns 0.15.
    MINT_NFT needs nftName or implicit context.
    VOTE_DAO needs voteChoice (yes/no).
    QUERY needs a concrete subject.
-0.2 when the request relies on a pronoun ("it", "him") with no named target.
-0.5 when the request is gibberish or unrelated.

Worked examples:
"Pay Bob 50 tokens": action +0.4, target Bob +0.3, amount +0.3 = 1.0
"Send 50": action +0.4, no target, amount without target +0.15 = 0.55
"Vote yes": action +0.4, implied DAO target 0, choice +0.3 = 0.7

When the user asks for several things ("Pay Bob 10 and then mint an NFT") return one intent per action, in the order given.
Explain each score briefly in reasoning.`

// responseSchema constrains the model output to the wire plan.
func responseSchema() *genai.Schema {
	types := make([]string, 0, len(intent.Types))
	for _, t := range intent.Types {
		types = append(types, string(t))
	}

	item := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"type":   {Type: genai.TypeString, Enum: types},
			"target": {Type: genai.TypeString},
			"amount": {Type: genai.TypeNumber},
			"params": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"nftName":    {Type: genai.TypeString},
					"voteChoice": {Type: genai.TypeString},
					"proposalId": {Type: genai.TypeString},
				},
			},
			"description": {Type: genai.TypeString},
			"confidence": {
				Type:        genai.TypeNumber,
				Description: "Score in [0,1] from action specificity, target resolution and parameter completeness.",
			},
			"reasoning": {
				Type:        genai.TypeString,
				Description: "Short explanation of the score, e.g. 'Target missing' or 'Fully specified'.",
			},
		},
		Required: []string{"type", "description", "confidence"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"intents": {
				Type:        genai.TypeArray,
				Items:       item,
				Description: "Actions to execute, in order.",
			},
			"summary": {
				Type:        genai.TypeString,
				Description: "One-line summary of the whole plan.",
			},
		},
		Required: []string{"intents", "summary"},
	}
}
