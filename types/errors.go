/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import "errors"

// Error kinds surfaced by the data-access layer. Callers match them with
// errors.Is; the wrapped message carries the details.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrAmbiguousResult     = errors.New("ambiguous result")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrBackendFailure      = errors.New("backend failure")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

func IsAmbiguousResult(err error) bool { return errors.Is(err, ErrAmbiguousResult) }

func IsConcurrencyConflict(err error) bool { return errors.Is(err, ErrConcurrencyConflict) }

func IsBackendFailure(err error) bool { return errors.Is(err, ErrBackendFailure) }
