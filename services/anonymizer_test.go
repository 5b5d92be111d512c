package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"call-review-api/models"
)

const snapshotJSON = `{
  "sections": [
    {
      "title": "Project",
      "questions": [
        {"id": "q2", "label": "Abstract", "type": "textarea", "order": 2},
        {"id": "q1", "label": "Objectives", "type": "text", "order": 1}
      ]
    },
    {
      "title": "Impact",
      "questions": [
        {"id": "q3", "label": "Expected results", "type": "textarea", "order": 1}
      ]
    }
  ]
}`

func TestProjectRejectsForeignCallers(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 1)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	reviewer := seedUser(t, db, models.RoleReviewer, "biology")
	other := seedUser(t, db, models.RoleReviewer, "law")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusUnderReview)
	assignment := seedAssignment(t, db, proposal.ProposalID, reviewer.UserID, models.AssignmentStatusAssigned)

	svc := NewAnonymizationService(db)
	if _, err := svc.Project(assignment.AssignmentID, other.UserID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for another reviewer, got %v", err)
	}

	// A cancelled assignment no longer authorizes its reviewer.
	if err := db.Model(&models.Assignment{}).
		Where("assignment_id = ?", assignment.AssignmentID).
		Update("status", models.AssignmentStatusCancelled).Error; err != nil {
		t.Fatalf("failed to cancel assignment: %v", err)
	}
	if _, err := svc.Project(assignment.AssignmentID, reviewer.UserID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized after cancellation, got %v", err)
	}
}

func TestProjectOmitsApplicantIdentity(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 1)

	applicant := seedUser(t, db, models.RoleApplicant, "")
	institution := "Universidade Federal Fictícia"
	applicant.UserFname = "Maria"
	applicant.UserLname = "Silveira"
	applicant.Institution = &institution
	if err := db.Save(applicant).Error; err != nil {
		t.Fatalf("failed to update applicant: %v", err)
	}

	reviewer := seedUser(t, db, models.RoleReviewer, "biology")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusUnderReview)
	assignment := seedAssignment(t, db, proposal.ProposalID, reviewer.UserID, models.AssignmentStatusInProgress)

	projection, err := NewAnonymizationService(db).Project(assignment.AssignmentID, reviewer.UserID)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	raw, err := json.Marshal(projection)
	if err != nil {
		t.Fatalf("failed to marshal projection: %v", err)
	}
	for _, leaked := range []string{"Maria", "Silveira", applicant.Email, institution} {
		if strings.Contains(string(raw), leaked) {
			t.Fatalf("projection leaks applicant identity %q: %s", leaked, raw)
		}
	}

	if projection.CallTitle != call.Title {
		t.Fatalf("expected call title, got %q", projection.CallTitle)
	}
	if projection.KnowledgeArea != "biology" {
		t.Fatalf("expected knowledge area, got %q", projection.KnowledgeArea)
	}
	if projection.Title != nil {
		t.Fatal("blind review must hide the proposal title")
	}
}

func TestProjectGroupsAnswersBySnapshotSections(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 1)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	reviewer := seedUser(t, db, models.RoleReviewer, "biology")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusUnderReview)
	assignment := seedAssignment(t, db, proposal.ProposalID, reviewer.UserID, models.AssignmentStatusInProgress)

	if err := db.Create(&models.FormSnapshot{
		CallID:     call.CallID,
		Version:    1,
		SchemaJSON: snapshotJSON,
		CreateAt:   time.Now(),
	}).Error; err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}
	for questionID, value := range map[string]string{
		"q1": "Map coastal biodiversity",
		"q2": "A two-year survey",
		"q3": "A public dataset",
	} {
		if err := db.Create(&models.ProposalAnswer{
			ProposalID: proposal.ProposalID,
			QuestionID: questionID,
			Value:      value,
			CreateAt:   time.Now(),
			UpdateAt:   time.Now(),
		}).Error; err != nil {
			t.Fatalf("failed to seed answer: %v", err)
		}
	}

	projection, err := NewAnonymizationService(db).Project(assignment.AssignmentID, reviewer.UserID)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	if projection.FlatAnswers != nil {
		t.Fatal("expected structured sections, not the flat fallback")
	}
	if len(projection.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(projection.Sections))
	}
	first := projection.Sections[0]
	if first.Title != "Project" || len(first.Answers) != 2 {
		t.Fatalf("unexpected first section: %+v", first)
	}
	// Questions come back in their declared order, labelled.
	if first.Answers[0].Label != "Objectives" || first.Answers[1].Label != "Abstract" {
		t.Fatalf("expected snapshot question order, got %+v", first.Answers)
	}
}

func TestProjectFallsBackToFlatAnswers(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 1)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	reviewer := seedUser(t, db, models.RoleReviewer, "biology")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusUnderReview)
	assignment := seedAssignment(t, db, proposal.ProposalID, reviewer.UserID, models.AssignmentStatusInProgress)

	if err := db.Create(&models.ProposalAnswer{
		ProposalID: proposal.ProposalID,
		QuestionID: "q1",
		Value:      "Answer without a schema",
		CreateAt:   time.Now(),
		UpdateAt:   time.Now(),
	}).Error; err != nil {
		t.Fatalf("failed to seed answer: %v", err)
	}

	projection, err := NewAnonymizationService(db).Project(assignment.AssignmentID, reviewer.UserID)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	if len(projection.Sections) != 0 {
		t.Fatalf("expected no sections without a snapshot, got %+v", projection.Sections)
	}
	if projection.FlatAnswers["q1"] != "Answer without a schema" {
		t.Fatalf("expected flat fallback, got %+v", projection.FlatAnswers)
	}
}

func TestProjectRenamesFilesByUploadOrder(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 1)
	applicant := seedUser(t, db, models.RoleApplicant, "")
	reviewer := seedUser(t, db, models.RoleReviewer, "biology")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusUnderReview)
	assignment := seedAssignment(t, db, proposal.ProposalID, reviewer.UserID, models.AssignmentStatusInProgress)

	base := time.Now().Add(-time.Hour)
	names := []string{"curriculo_maria.pdf", "orcamento.pdf", "plano.pdf"}
	for i, name := range names {
		if err := db.Create(&models.FileUpload{
			ProposalID:   proposal.ProposalID,
			OriginalName: name,
			StoredName:   fmt.Sprintf("stored-%d.pdf", i),
			MimeType:     "application/pdf",
			FileSize:     1024,
			UploadedBy:   applicant.UserID,
			UploadedAt:   base.Add(time.Duration(i) * time.Minute),
			CreateAt:     time.Now(),
		}).Error; err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}
	}

	svc := NewAnonymizationService(db)
	projection, err := svc.Project(assignment.AssignmentID, reviewer.UserID)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	if len(projection.Files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(projection.Files))
	}
	for i, file := range projection.Files {
		want := fmt.Sprintf("Anexo_%s_%d", projection.BlindCode, i+1)
		if file.Name != want {
			t.Fatalf("expected %s, got %s", want, file.Name)
		}
		if strings.Contains(file.Name, "maria") {
			t.Fatalf("original filename leaked: %s", file.Name)
		}
	}

	// The numbering is stable across repeated calls.
	again, err := svc.Project(assignment.AssignmentID, reviewer.UserID)
	if err != nil {
		t.Fatalf("second project failed: %v", err)
	}
	for i := range projection.Files {
		if projection.Files[i].Name != again.Files[i].Name {
			t.Fatalf("file naming is not stable: %s vs %s", projection.Files[i].Name, again.Files[i].Name)
		}
	}
}

func TestProjectWithBlindReviewDisabledStillRenamesFiles(t *testing.T) {
	db := newTestDB(t)
	call := seedCall(t, db, 1)
	if err := db.Model(&models.Call{}).
		Where("call_id = ?", call.CallID).
		Update("blind_review_enabled", false).Error; err != nil {
		t.Fatalf("failed to disable blind review: %v", err)
	}

	applicant := seedUser(t, db, models.RoleApplicant, "")
	reviewer := seedUser(t, db, models.RoleReviewer, "biology")
	proposal := seedProposal(t, db, call.CallID, applicant.UserID, "biology", models.ProposalStatusUnderReview)
	assignment := seedAssignment(t, db, proposal.ProposalID, reviewer.UserID, models.AssignmentStatusInProgress)

	if err := db.Create(&models.FileUpload{
		ProposalID:   proposal.ProposalID,
		OriginalName: "documento.pdf",
		StoredName:   "stored.pdf",
		MimeType:     "application/pdf",
		FileSize:     2048,
		UploadedBy:   applicant.UserID,
		UploadedAt:   time.Now(),
		CreateAt:     time.Now(),
	}).Error; err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	projection, err := NewAnonymizationService(db).Project(assignment.AssignmentID, reviewer.UserID)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	// Public fields come through, but files are still anonymized.
	if projection.Title == nil || *projection.Title != proposal.Title {
		t.Fatalf("expected the public title, got %v", projection.Title)
	}
	if len(projection.Files) != 1 || !strings.HasPrefix(projection.Files[0].Name, "Anexo_") {
		t.Fatalf("expected renamed files even without blind review, got %+v", projection.Files)
	}
}
