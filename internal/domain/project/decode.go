package project

import (
	"encoding/json"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT DECODING
// ══════════════════════════════════════════════════════════════════════════════
//
// Документы из удалённого хранилища имеют "плавающую" форму: поля могут
// отсутствовать, assignedMembers иногда приходит строкой, members - массивом.
// Некорректные значения трактуются как отсутствующие, ошибки на уровне поля
// не возникают.

type taskDocument struct {
	ID              json.RawMessage `json:"id"`
	ProjectID       json.RawMessage `json:"projectId"`
	Title           json.RawMessage `json:"title"`
	Status          json.RawMessage `json:"status"`
	AssignedMembers json.RawMessage `json:"assignedMembers"`
	Assignee        json.RawMessage `json:"assignee"`
}

type projectDocument struct {
	ID           json.RawMessage `json:"id"`
	Name         json.RawMessage `json:"name"`
	EndDate      json.RawMessage `json:"endDate"`
	Responsibles json.RawMessage `json:"responsibles"`
	Responsible  json.RawMessage `json:"responsible"`
	Members      json.RawMessage `json:"members"`
}

type responsibleDocument struct {
	MemberID   json.RawMessage `json:"memberId"`
	MemberName json.RawMessage `json:"memberName"`
}

// UnmarshalJSON декодирует задачу, терпимо относясь к форме полей.
func (t *Task) UnmarshalJSON(data []byte) error {
	var doc taskDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*t = Task{
		ID:              looseString(doc.ID),
		ProjectID:       looseString(doc.ProjectID),
		Title:           looseString(doc.Title),
		Status:          Status(looseString(doc.Status)),
		AssignedMembers: looseStringList(doc.AssignedMembers),
		Assignee:        looseString(doc.Assignee),
	}
	return nil
}

// MarshalJSON кодирует задачу в каноническую форму документа.
func (t Task) MarshalJSON() ([]byte, error) {
	members := t.AssignedMembers
	if members == nil {
		members = []string{}
	}
	return json.Marshal(struct {
		ID              string   `json:"id"`
		ProjectID       string   `json:"projectId"`
		Title           string   `json:"title"`
		Status          Status   `json:"status"`
		AssignedMembers []string `json:"assignedMembers"`
		Assignee        string   `json:"assignee,omitempty"`
	}{t.ID, t.ProjectID, t.Title, t.Status, members, t.Assignee})
}

// UnmarshalJSON декодирует проект, терпимо относясь к форме полей.
func (p *Project) UnmarshalJSON(data []byte) error {
	var doc projectDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*p = Project{
		ID:           looseString(doc.ID),
		Name:         looseString(doc.Name),
		EndDate:      looseString(doc.EndDate),
		Responsibles: looseResponsibles(doc.Responsibles),
		Responsible:  looseNames(doc.Responsible),
		Members:      looseNames(doc.Members),
	}
	return nil
}

// MarshalJSON кодирует проект в каноническую форму документа.
func (p Project) MarshalJSON() ([]byte, error) {
	responsibles := p.Responsibles
	if responsibles == nil {
		responsibles = []Responsible{}
	}
	return json.Marshal(struct {
		ID           string        `json:"id"`
		Name         string        `json:"name"`
		EndDate      string        `json:"endDate,omitempty"`
		Responsibles []Responsible `json:"responsibles"`
		Responsible  string        `json:"responsible,omitempty"`
		Members      string        `json:"members,omitempty"`
	}{p.ID, p.Name, p.EndDate, responsibles, p.Responsible, p.Members})
}

// looseString возвращает строку или "" для любого другого типа.
func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// looseStringList возвращает строковые элементы массива.
// Не-массив даёт nil, не-строковые и пустые элементы пропускаются.
func looseStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(looseString(item)); s != "" {
			result = append(result, s)
		}
	}
	return result
}

// looseNames принимает строку или массив строк и возвращает строку через ", ".
func looseNames(raw json.RawMessage) string {
	if s := looseString(raw); s != "" {
		return s
	}
	return strings.Join(looseStringList(raw), ", ")
}

func looseResponsibles(raw json.RawMessage) []Responsible {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	result := make([]Responsible, 0, len(items))
	for _, item := range items {
		var doc responsibleDocument
		if err := json.Unmarshal(item, &doc); err != nil {
			continue
		}
		r := Responsible{
			MemberID:   strings.TrimSpace(looseString(doc.MemberID)),
			MemberName: strings.TrimSpace(looseString(doc.MemberName)),
		}
		if r.MemberID == "" && r.MemberName == "" {
			continue
		}
		result = append(result, r)
	}
	return result
}

// DecodeResponsibles декодирует JSON-массив ответственных так же терпимо,
// как UnmarshalJSON проекта: некорректный документ даёт nil, а элементы без
// memberId и memberName пропускаются.
func DecodeResponsibles(raw []byte) []Responsible {
	return looseResponsibles(raw)
}
