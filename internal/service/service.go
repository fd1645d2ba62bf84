package service

import (
	"context"
	"fmt"
	"strings"

	"famtree/internal/domain"
	"famtree/internal/repository"

	"github.com/google/uuid"
)

// TreeService provides business logic for family tree operations
type TreeService struct {
	repo     repository.Repository
	eventBus *EventBus
	newID    func() string
}

// NewTreeService creates a new tree service
func NewTreeService(repo repository.Repository, eventBus *EventBus) *TreeService {
	return &TreeService{
		repo:     repo,
		eventBus: eventBus,
		newID:    uuid.NewString,
	}
}

// ListPeople returns all people, optionally including living ones
func (s *TreeService) ListPeople(ctx context.Context, includeLiving bool) ([]domain.Person, error) {
	return s.repo.ListPeople(ctx, includeLiving)
}

// GetPerson retrieves a single person by ID
func (s *TreeService) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	person, err := s.repo.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, fmt.Errorf("person %s not found", id)
	}
	return person, nil
}

// CreatePerson validates and stores a new person. An empty ID is generated.
func (s *TreeService) CreatePerson(ctx context.Context, person *domain.Person) error {
	if person.ID == "" {
		person.ID = s.newID()
	}
	s.normalizePerson(person)
	if err := s.validatePerson(person); err != nil {
		return err
	}

	if err := s.repo.CreatePerson(ctx, person); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventPersonCreated,
		Payload: map[string]string{"person_id": person.ID, "name": person.DisplayName()},
	})

	return nil
}

// DeletePerson removes a person. Families they belonged to are kept.
func (s *TreeService) DeletePerson(ctx context.Context, id string) error {
	if _, err := s.GetPerson(ctx, id); err != nil {
		return err
	}

	if err := s.repo.DeletePerson(ctx, id); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventPersonDeleted,
		Payload: map[string]string{"person_id": id},
	})

	return nil
}

// ListFamilies returns all families
func (s *TreeService) ListFamilies(ctx context.Context) ([]domain.Family, error) {
	return s.repo.ListFamilies(ctx)
}

// GetFamily retrieves a single family by ID
func (s *TreeService) GetFamily(ctx context.Context, id string) (*domain.Family, error) {
	family, err := s.repo.GetFamily(ctx, id)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, fmt.Errorf("family %s not found", id)
	}
	return family, nil
}

// CreateFamily validates and stores a new family. Every member must exist.
func (s *TreeService) CreateFamily(ctx context.Context, family *domain.Family) error {
	if family.ID == "" {
		family.ID = s.newID()
	}
	if family.ChildIDs == nil {
		family.ChildIDs = make([]string, 0)
	}
	if err := s.validateFamily(family); err != nil {
		return err
	}

	for _, id := range family.MemberIDs() {
		person, err := s.repo.GetPerson(ctx, id)
		if err != nil {
			return err
		}
		if person == nil {
			return fmt.Errorf("family member %s does not exist", id)
		}
	}

	if err := s.repo.CreateFamily(ctx, family); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventFamilyCreated,
		Payload: map[string]string{"family_id": family.ID},
	})

	return nil
}

// DeleteFamily removes a family. Its members are kept.
func (s *TreeService) DeleteFamily(ctx context.Context, id string) error {
	if _, err := s.GetFamily(ctx, id); err != nil {
		return err
	}

	if err := s.repo.DeleteFamily(ctx, id); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventFamilyDeleted,
		Payload: map[string]string{"family_id": id},
	})

	return nil
}

// CreateSource stores a source record. An empty ID is generated.
func (s *TreeService) CreateSource(ctx context.Context, source *domain.SourceCitation) error {
	if source.ID == "" {
		source.ID = s.newID()
	}
	if err := s.validateSource(source); err != nil {
		return err
	}

	if err := s.repo.UpsertSource(ctx, source); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventSourceCreated,
		Payload: map[string]string{"source_id": source.ID},
	})

	return nil
}

// AttachSource cites an existing source on an existing person
func (s *TreeService) AttachSource(ctx context.Context, personID, sourceID string) error {
	if _, err := s.GetPerson(ctx, personID); err != nil {
		return err
	}
	source, err := s.repo.GetSource(ctx, sourceID)
	if err != nil {
		return err
	}
	if source == nil {
		return fmt.Errorf("source %s not found", sourceID)
	}

	if err := s.repo.AttachSource(ctx, personID, sourceID); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventSourceAttached,
		Payload: map[string]string{"person_id": personID, "source_id": sourceID},
	})

	return nil
}

// ClearTree removes all people, families and sources
func (s *TreeService) ClearTree(ctx context.Context) error {
	if err := s.repo.ClearTree(ctx); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventTreeCleared,
		Payload: map[string]string{"action": "cleared"},
	})

	return nil
}

// TreeStatus summarizes the stored tree
type TreeStatus struct {
	People     int    `json:"people"`
	Living     int    `json:"living"`
	Families   int    `json:"families"`
	LastImport string `json:"last_import,omitempty"`
	LastExport string `json:"last_export,omitempty"`
}

// Status returns record counts and the last import and export times
func (s *TreeService) Status(ctx context.Context) (*TreeStatus, error) {
	people, err := s.repo.ListPeople(ctx, true)
	if err != nil {
		return nil, err
	}
	families, err := s.repo.ListFamilies(ctx)
	if err != nil {
		return nil, err
	}

	status := &TreeStatus{People: len(people), Families: len(families)}
	for _, p := range people {
		if p.Living {
			status.Living++
		}
	}

	if status.LastImport, err = s.repo.GetMetadata(ctx, repository.MetaLastImport); err != nil {
		return nil, err
	}
	if status.LastExport, err = s.repo.GetMetadata(ctx, repository.MetaLastExport); err != nil {
		return nil, err
	}

	return status, nil
}

// Validation helpers

// normalizePerson canonicalizes sex and derives a missing full name
func (s *TreeService) normalizePerson(person *domain.Person) {
	person.GivenName = strings.TrimSpace(person.GivenName)
	person.Surname = strings.TrimSpace(person.Surname)
	person.FullName = strings.TrimSpace(person.FullName)
	person.Sex = domain.ParseSex(string(person.Sex))
	if person.FullName == "" {
		person.FullName = domain.JoinName(person.GivenName, person.Surname)
	}
}

func (s *TreeService) validatePerson(person *domain.Person) error {
	if person.ID == "" {
		return fmt.Errorf("person ID required")
	}
	if person.FullName == "" {
		return fmt.Errorf("person name required")
	}
	for _, src := range person.Sources {
		if src.ID == "" {
			return fmt.Errorf("source ID required for citation on %s", person.ID)
		}
	}
	return nil
}

func (s *TreeService) validateFamily(family *domain.Family) error {
	if family.ID == "" {
		return fmt.Errorf("family ID required")
	}
	if len(family.MemberIDs()) == 0 {
		return fmt.Errorf("family must have at least one member")
	}
	if family.HusbandID != "" && family.HusbandID == family.WifeID {
		return fmt.Errorf("family husband and wife cannot be the same person")
	}
	for _, childID := range family.ChildIDs {
		if childID == "" {
			return fmt.Errorf("family child ID cannot be empty")
		}
		if childID == family.HusbandID || childID == family.WifeID {
			return fmt.Errorf("person %s cannot be both parent and child", childID)
		}
	}
	return nil
}

func (s *TreeService) validateSource(source *domain.SourceCitation) error {
	if source.ID == "" {
		return fmt.Errorf("source ID required")
	}
	if source.Name == "" && source.URL == "" && source.Content == "" {
		return fmt.Errorf("source needs a name, URL or content")
	}
	return nil
}
