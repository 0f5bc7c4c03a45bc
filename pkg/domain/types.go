package domain

import "time"

type ResumeStatus string

const (
	ResumePending   ResumeStatus = "pending"
	ResumeCompleted ResumeStatus = "completed"
)

type SessionType string

const (
	SessionRecruiter     SessionType = "recruiter"
	SessionTechnical     SessionType = "technical"
	SessionHiringManager SessionType = "hiring_manager"
	SessionBehavioral    SessionType = "behavioral"
)

type SessionMode string

const (
	ModePractice SessionMode = "practice"
	ModeReal     SessionMode = "real"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// MaxMustAskQuestions caps the optional question list on a session.
const MaxMustAskQuestions = 5

// MaxMustAskQuestionLen caps each must-ask question, in characters.
const MaxMustAskQuestionLen = 50

type BasicInfo struct {
	Name       string   `json:"name"`
	Location   string   `json:"location"`
	Languages  []string `json:"languages"`
	HardSkills []string `json:"hard_skills"`
	SoftSkills []string `json:"soft_skills"`
}

// InterviewHook is a deep-dive topic extracted from the resume that the
// interviewer can drill into.
type InterviewHook struct {
	TopicName  string `json:"topic_name"`
	SourceType string `json:"source_type"`
	KeyDetails string `json:"key_details"`
}

type WorkExperience struct {
	Company                         string `json:"company"`
	Role                            string `json:"role"`
	DateRange                       string `json:"date_range"`
	ResponsibilitiesAndAchievements string `json:"responsibilities_and_achievements"`
}

type Project struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	TechOrTools []string `json:"tech_or_tools"`
}

type Education struct {
	School         string `json:"school"`
	Degree         string `json:"degree"`
	Major          string `json:"major"`
	GraduationYear string `json:"graduation_year"`
}

// Resume is the parsed resume profile. Exactly one exists per user id;
// the server owns the canonical copy.
type Resume struct {
	ID                  string           `json:"id"`
	UserID              string           `json:"user_id"`
	BasicInfo           BasicInfo        `json:"basic_info"`
	ProfessionalSummary string           `json:"professional_summary"`
	InterviewHooks      []InterviewHook  `json:"interview_hooks"`
	WorkExperience      []WorkExperience `json:"work_experience"`
	Projects            []Project        `json:"projects"`
	Education           []Education      `json:"education"`
	Status              ResumeStatus     `json:"status"`
}

// Application is a target company plus job description owned by one user.
type Application struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	CompanyName    string    `json:"company_name"`
	JobTitle       string    `json:"job_title"`
	JobDescription string    `json:"job_description,omitempty"`
	Industry       string    `json:"industry,omitempty"`
	JobGrade       string    `json:"job_grade,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Session is one mock-interview attempt against an application.
// Once completed it is immutable except for deletion.
type Session struct {
	ID               string        `json:"id"`
	ApplicationID    string        `json:"application_id"`
	UserID           string        `json:"user_id"`
	Type             SessionType   `json:"type"`
	Mode             SessionMode   `json:"mode"`
	TechnicalLevel   string        `json:"technical_level,omitempty"`
	InterviewerName  string        `json:"interviewer_name,omitempty"`
	AdditionalNotes  string        `json:"additional_notes,omitempty"`
	MustAskQuestions []string      `json:"must_ask_questions"`
	Status           SessionStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatHistory is the append-only message log for one session together
// with the server-counted round number.
type ChatHistory struct {
	Messages   []Message `json:"messages"`
	TotalRound int       `json:"total_round"`
}

// InterviewTurn is the server's reply to a start or send call. TaskTopic
// and TaskInstruction contextualize scoring of the next user answer.
type InterviewTurn struct {
	Response        string `json:"response"`
	Finished        bool   `json:"finished"`
	TotalRound      int    `json:"total_round"`
	TaskTopic       string `json:"task_topic"`
	TaskInstruction string `json:"task_instruction"`
}

// MatchAnalysis is the resume-job fit result for one application.
type MatchAnalysis struct {
	Score       int    `json:"score"`
	Label       string `json:"label"`
	ScoreReason string `json:"score_reason"`
}

// GrammarFeedback is the corrected version of a user answer.
type GrammarFeedback struct {
	CorrectedVersion string `json:"corrected_version"`
}

// ScoreFeedback grades a user answer against the question that prompted it.
type ScoreFeedback struct {
	Score         int    `json:"score"`
	Reasoning     string `json:"reasoning"`
	BetterVersion string `json:"better_version"`
}

// Transcript is the speech-to-text result for a recorded answer.
type Transcript struct {
	Text string `json:"text"`
}
