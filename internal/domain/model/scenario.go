package model

// Vitals are the monitor values of a patient state.
type Vitals struct {
	HR      float64  `json:"hr"`
	RR      float64  `json:"rr"`
	BPSys   float64  `json:"btSys"`
	BPDia   float64  `json:"btDia"`
	SpO2    float64  `json:"spo2"`
	Temp    *float64 `json:"temp,omitempty"`
	GCS     *float64 `json:"gcs,omitempty"`
	PainNRS *float64 `json:"painNrs,omitempty"`
}

// State is one node of a scenario's narrative state machine.
type State struct {
	ID        string            `json:"id"`
	Vitals    Vitals            `json:"vitals"`
	ABCDE     map[string]string `json:"abcde,omitempty"`
	ExtraInfo string            `json:"extraInfo,omitempty"`
}

// Transition moves the patient between states when an action is taken.
type Transition struct {
	ID          string `json:"id"`
	FromStateID string `json:"fromStateId"`
	ToStateID   string `json:"toStateId"`
	ActionID    string `json:"actionId"`
	Feedback    string `json:"feedbackToFacilitator,omitempty"`
}

// Scenario is a case definition. Only ExpectedActions is used for grading.
type Scenario struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Subtitle        string           `json:"subtitle,omitempty"`
	DispatchText    string           `json:"dispatchText,omitempty"`
	CaseType        string           `json:"caseType,omitempty"`
	Acuity          string           `json:"acuity,omitempty"`
	Difficulty      int              `json:"difficulty,omitempty"`
	Diagnosis       string           `json:"diagnosis,omitempty"`
	InitialStateID  string           `json:"initialStateId,omitempty"`
	States          []State          `json:"states,omitempty"`
	Transitions     []Transition     `json:"transitions,omitempty"`
	ExpectedActions []ExpectedAction `json:"expectedActions"`
}
