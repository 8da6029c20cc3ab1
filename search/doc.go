// Copyright 2025 Transvec Authors
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

// Package search provides semantic retrieval over indexed transcript chunks.
//
// The Retriever embeds a free-text query with the same model version the
// chunks were indexed under and ranks chunks by cosine similarity. On
// unit-normalized vectors cosine similarity reduces to the dot product, which
// is what the store computes. A RetrievalMonitor can observe each stage of a
// query, including verbatim keyword matches, without influencing the ranking.
package search
