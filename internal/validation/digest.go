package validation

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/snapshot"
)

// Drafts live on the client until they are filed, so the server cannot
// remember that a draft was validated. Validate hands back a keyed digest
// over the validated content and its verdict; Submit recomputes it and
// refuses content that changed since the last validation pass. The plan id
// and template id are bound too, so a digest cannot be moved to another
// plan or template.

type digestBody struct {
	PlanID     string            `json:"planId"`
	TemplateID string            `json:"templateId"`
	Snapshot   models.Snapshot   `json:"snapshot"`
	MetaValues map[string]string `json:"metaValues"`
	Answers    map[string]string `json:"answers"`
	Verdict    *models.Verdict   `json:"verdict"`
}

// Digest returns the hex HMAC-SHA256 of p's validated content under key.
// Nil and empty collections digest the same.
func Digest(key []byte, p *models.Plan) string {
	var verdict *models.Verdict
	if p.AIValidation != nil {
		verdict = &models.Verdict{
			Status:   p.AIValidation.Status,
			Findings: append([]string{}, p.AIValidation.Findings...),
		}
	}
	body, err := json.Marshal(digestBody{
		PlanID:     p.ID,
		TemplateID: p.TemplateID,
		Snapshot:   snapshot.Clone(p.Snapshot()),
		MetaValues: snapshot.CopyValues(p.MetaValues),
		Answers:    snapshot.CopyValues(p.Answers),
		Verdict:    verdict,
	})
	if err != nil {
		return ""
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether p carries a verdict whose digest matches its
// current content.
func Verify(key []byte, p *models.Plan) bool {
	if p.AIValidation == nil || p.ValidationDigest == "" {
		return false
	}
	want := Digest(key, p)
	return want != "" && hmac.Equal([]byte(want), []byte(p.ValidationDigest))
}
