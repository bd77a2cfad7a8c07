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


// Package engine compiles workflow definitions into execution plans and
// runs them with a bounded number of concurrent runs.
//
// Compile resolves credentials and cache slots and assigns each node an
// execution route: inline within the engine or queued onto a pipeline
// stage. Execute walks the compiled graph in topological order, runs ready
// nodes concurrently, publishes queued nodes as jobs, and resumes them from
// the stage completion events the workers publish.
package engine
