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


package workflow

// Switch edge labels. Outgoing edges of a switch node carry exactly these
// two labels; edges out of any other node are unlabeled.
const (
	LabelTrue  = "true"
	LabelFalse = "false"
)

// Edge is a directed data-flow connection between two nodes.
type Edge struct {
	From  NodeId `json:"from"`
	To    NodeId `json:"to"`
	Label string `json:"label,omitempty"`
}
