// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package queue

import (
	"time"

	"github.com/poiesic/docflow/core"
)

// StreamName is the single stream carrying all pipeline subjects.
const StreamName = "DOCFLOW"

// Stage is one of the three fixed pipeline phases. Each stage fixes its
// subject prefix, consumer name, and message max-age.
type Stage string

const (
	StagePreprocessing  Stage = "preprocessing"
	StageProcessing     Stage = "processing"
	StagePostprocessing Stage = "postprocessing"
)

// Stages lists the stages in pipeline order.
var Stages = []Stage{StagePreprocessing, StageProcessing, StagePostprocessing}

// Valid reports whether s is one of the three pipeline stages.
func (s Stage) Valid() bool {
	switch s {
	case StagePreprocessing, StageProcessing, StagePostprocessing:
		return true
	}
	return false
}

// Next returns the stage that follows s in the pipeline, or false for the
// final stage. Stage transitions are explicit: handlers decide whether to
// publish onward, this only tells them where.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StagePreprocessing:
		return StageProcessing, true
	case StageProcessing:
		return StagePostprocessing, true
	}
	return "", false
}

// Subject returns the targeted publish subject for one file's jobs at this
// stage.
func (s Stage) Subject(fileID core.FileID) string {
	return StreamName + "." + string(s) + "." + fileID.String()
}

// WildcardSubject returns the stage-wide subscription filter.
func (s Stage) WildcardSubject() string {
	return StreamName + "." + string(s) + ".>"
}

// DeadSubject returns the dead-letter subject for one file's exhausted jobs
// at this stage.
func (s Stage) DeadSubject(fileID core.FileID) string {
	return StreamName + ".dead." + string(s) + "." + fileID.String()
}

// DeadWildcardSubject returns the stage-wide dead-letter filter, used by
// inspection tooling.
func (s Stage) DeadWildcardSubject() string {
	return StreamName + ".dead." + string(s) + ".>"
}

// CompletionSubject returns the subject completion events for one file's
// jobs at this stage are published to.
func (s Stage) CompletionSubject(fileID core.FileID) string {
	return StreamName + ".done." + string(s) + "." + fileID.String()
}

// CompletionWildcardSubject returns the stage-wide completion event filter.
func (s Stage) CompletionWildcardSubject() string {
	return StreamName + ".done." + string(s) + ".>"
}

// AllCompletionsSubject returns the filter matching completion events of
// every stage, used by orchestrators that resume work from them.
func AllCompletionsSubject() string {
	return StreamName + ".done.>"
}

// ConsumerName returns the default durable consumer name for the stage's
// worker pool.
func (s Stage) ConsumerName() string {
	return "docflow-" + string(s) + "-workers"
}

// MaxAge returns how long an undelivered job message stays on the stream
// before it expires.
func (s Stage) MaxAge() time.Duration {
	switch s {
	case StagePreprocessing:
		return 24 * time.Hour
	case StageProcessing:
		return 48 * time.Hour
	case StagePostprocessing:
		return 24 * time.Hour
	}
	return 24 * time.Hour
}
