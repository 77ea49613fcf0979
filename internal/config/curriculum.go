package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ashureev/unichat/internal/domain"
	"gopkg.in/yaml.v3"
)

// Curriculum describes the institution, its subjects and the page copy.
type Curriculum struct {
	Title       string   `yaml:"title"`
	Tagline     string   `yaml:"tagline"`
	Institution string   `yaml:"institution"`
	Persona     string   `yaml:"persona"`
	Intro       string   `yaml:"intro"`
	Subjects    []string `yaml:"subjects"`
}

const defaultIntro = `👋 **AssalamuAlaikum**

I'm your personalized academic assistant, created by *Aqsa Shah* for **University of Sindh** students,
**Batch 2025 (Second Semester)**.

📘 Subjects I'm specialized in:
- Digital Logic Design
- Java & Java OOP
- Pre-Calculus
- Civics and Community Engagement
- Expository Writing
- Financial Accounting
- Islamic Studies

💡 Ask anything from these subjects. You can use me for **1 month unlimited**.
Let's learn together! 😊`

// DefaultCurriculum returns the built-in University of Sindh curriculum.
func DefaultCurriculum() Curriculum {
	return Curriculum{
		Title:       "🎓 University Chatbot by Aqsa Shah",
		Tagline:     "Ask any question related to your subjects below:",
		Institution: "University of Sindh",
		Intro:       defaultIntro,
		Subjects: []string{
			"digital logic design",
			"java",
			"java oop",
			"pre-calculus",
			"civics and community engagement",
			"expository writing",
			"financial accounting",
			"islamic studies",
		},
	}
}

// LoadCurriculum reads a YAML curriculum file. An empty path yields the
// built-in curriculum. Fields missing from the file keep their defaults.
func LoadCurriculum(path string) (Curriculum, error) {
	cur := DefaultCurriculum()
	if path == "" {
		return cur, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Curriculum{}, fmt.Errorf("read curriculum: %w", err)
	}

	var file Curriculum
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return Curriculum{}, fmt.Errorf("decode curriculum %s: %w", path, err)
	}

	if file.Title != "" {
		cur.Title = file.Title
	}
	if file.Tagline != "" {
		cur.Tagline = file.Tagline
	}
	if file.Institution != "" {
		cur.Institution = file.Institution
	}
	if file.Persona != "" {
		cur.Persona = file.Persona
	}
	if file.Intro != "" {
		cur.Intro = file.Intro
	}
	if len(file.Subjects) > 0 {
		cur.Subjects = file.Subjects
	}

	if err := cur.Validate(); err != nil {
		return Curriculum{}, fmt.Errorf("invalid curriculum %s: %w", path, err)
	}
	return cur, nil
}

// Validate checks that the curriculum can drive the gate.
func (c Curriculum) Validate() error {
	if len(c.SubjectSet()) == 0 {
		return errors.New("at least one subject is required")
	}
	if c.Institution == "" {
		return errors.New("institution cannot be empty")
	}
	return nil
}

// SubjectSet returns the configured subjects.
func (c Curriculum) SubjectSet() []domain.Subject {
	return domain.SubjectsFromLabels(c.Subjects)
}

// SystemPersona returns the system prompt sent with every question.
func (c Curriculum) SystemPersona() string {
	if c.Persona != "" {
		return c.Persona
	}
	labels := make([]string, 0, len(c.Subjects))
	for _, s := range c.SubjectSet() {
		labels = append(labels, s.String())
	}
	return fmt.Sprintf("You are a helpful academic assistant for %s students. You help with these subjects: %s.",
		c.Institution, strings.Join(labels, ", "))
}
