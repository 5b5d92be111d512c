package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"call-review-api/models"

	"gorm.io/gorm"
)

// AnonymizationService produces the reviewer-facing view of a proposal
// with every applicant-identifying field stripped out.
type AnonymizationService struct {
	db *gorm.DB
}

func NewAnonymizationService(db *gorm.DB) *AnonymizationService {
	return &AnonymizationService{db: db}
}

// AnonymizedProposal is the only shape a reviewer ever sees. It carries
// no applicant name, email or personal institution identifiers.
type AnonymizedProposal struct {
	AssignmentID       int                 `json:"assignment_id"`
	AssignmentStatus   string              `json:"assignment_status"`
	BlindCode          string              `json:"blind_code"`
	CallTitle          string              `json:"call_title"`
	BlindReviewEnabled bool                `json:"blind_review_enabled"`
	ReviewDeadline     *time.Time          `json:"review_deadline,omitempty"`
	KnowledgeArea      string              `json:"knowledge_area"`
	ProposalStatus     string              `json:"proposal_status"`
	Title              *string             `json:"title,omitempty"`
	Sections           []AnonymizedSection `json:"sections,omitempty"`
	FlatAnswers        map[string]string   `json:"flat_answers,omitempty"`
	Files              []AnonymizedFile    `json:"files"`
}

// AnonymizedSection groups answers by the call's form snapshot.
type AnonymizedSection struct {
	Title   string             `json:"title"`
	Answers []AnonymizedAnswer `json:"answers"`
}

type AnonymizedAnswer struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// AnonymizedFile is a renamed file reference; n is a dense 1-based
// sequence ordered by the original upload time, stable across calls.
type AnonymizedFile struct {
	FileID   int    `json:"file_id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// formSchema mirrors the immutable snapshot JSON:
// {sections:[{title, questions:[{id,label,type,order}]}]}.
type formSchema struct {
	Sections []struct {
		Title     string `json:"title"`
		Questions []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
			Type  string `json:"type"`
			Order int    `json:"order"`
		} `json:"questions"`
	} `json:"sections"`
}

// Project builds the redacted view for the reviewer holding a live
// assignment. Any other caller gets ErrNotAuthorized.
func (s *AnonymizationService) Project(assignmentID, callerReviewerID int) (*AnonymizedProposal, error) {
	var assignment models.Assignment
	if err := s.db.Where("assignment_id = ?", assignmentID).First(&assignment).Error; err != nil {
		return nil, err
	}
	if assignment.ReviewerID != callerReviewerID || assignment.Status == models.AssignmentStatusCancelled {
		return nil, ErrNotAuthorized
	}

	var proposal models.Proposal
	if err := s.db.Preload("Call").
		Where("proposal_id = ?", assignment.ProposalID).
		First(&proposal).Error; err != nil {
		return nil, err
	}

	blindCode := ""
	if proposal.BlindCode != nil {
		blindCode = *proposal.BlindCode
	}

	out := &AnonymizedProposal{
		AssignmentID:       assignment.AssignmentID,
		AssignmentStatus:   assignment.Status,
		BlindCode:          blindCode,
		CallTitle:          proposal.Call.Title,
		BlindReviewEnabled: proposal.Call.BlindReviewEnabled,
		ReviewDeadline:     proposal.Call.ReviewDeadline,
		KnowledgeArea:      proposal.KnowledgeArea,
		ProposalStatus:     proposal.Status,
	}

	// With blind review disabled the call may expose explicitly public
	// fields; the proposal title is the only one here. File renaming
	// and question structuring still apply either way.
	if !proposal.Call.BlindReviewEnabled {
		title := proposal.Title
		out.Title = &title
	}

	if err := s.projectAnswers(out, &proposal); err != nil {
		return nil, err
	}
	if err := s.projectFiles(out, proposal.ProposalID, blindCode); err != nil {
		return nil, err
	}
	return out, nil
}

// projectAnswers groups the raw answers by the call's form snapshot.
// Without a snapshot the projector degrades to a flat key-value map,
// which is a valid output, not an error.
func (s *AnonymizationService) projectAnswers(out *AnonymizedProposal, proposal *models.Proposal) error {
	var answers []models.ProposalAnswer
	if err := s.db.Where("proposal_id = ?", proposal.ProposalID).
		Find(&answers).Error; err != nil {
		return err
	}
	byQuestion := make(map[string]string, len(answers))
	for _, answer := range answers {
		byQuestion[answer.QuestionID] = answer.Value
	}

	var snapshot models.FormSnapshot
	err := s.db.Where("call_id = ?", proposal.CallID).
		Order("version DESC").
		First(&snapshot).Error
	if err == gorm.ErrRecordNotFound {
		out.FlatAnswers = byQuestion
		return nil
	}
	if err != nil {
		return err
	}

	var schema formSchema
	if err := json.Unmarshal([]byte(snapshot.SchemaJSON), &schema); err != nil {
		// A corrupt snapshot degrades the same way as a missing one.
		out.FlatAnswers = byQuestion
		return nil
	}

	for _, section := range schema.Sections {
		questions := section.Questions
		sort.SliceStable(questions, func(i, j int) bool {
			return questions[i].Order < questions[j].Order
		})

		projected := AnonymizedSection{Title: section.Title}
		for _, question := range questions {
			value, ok := byQuestion[question.ID]
			if !ok {
				continue
			}
			projected.Answers = append(projected.Answers, AnonymizedAnswer{
				Label: question.Label,
				Value: value,
			})
		}
		if len(projected.Answers) > 0 {
			out.Sections = append(out.Sections, projected)
		}
	}
	return nil
}

// projectFiles renames the proposal's attachments to
// Anexo_{blindCode}_{n} ordered by upload time. Only metadata is read.
func (s *AnonymizationService) projectFiles(out *AnonymizedProposal, proposalID int, blindCode string) error {
	var files []models.FileUpload
	if err := s.db.Where("proposal_id = ? AND delete_at IS NULL", proposalID).
		Order("uploaded_at ASC, file_id ASC").
		Find(&files).Error; err != nil {
		return err
	}

	out.Files = make([]AnonymizedFile, 0, len(files))
	for i, file := range files {
		out.Files = append(out.Files, AnonymizedFile{
			FileID:   file.FileID,
			Name:     fmt.Sprintf("Anexo_%s_%d", blindCode, i+1),
			MimeType: file.MimeType,
			FileSize: file.FileSize,
		})
	}
	return nil
}
