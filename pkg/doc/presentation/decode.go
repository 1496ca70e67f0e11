/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentation

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DecodeDefinitionV1 decodes a v1 definition received as a generic map (e.g. from a mobile binding).
func DecodeDefinitionV1(raw map[string]interface{}) (*DefinitionV1, error) {
	def := &DefinitionV1{}

	if err := decode(raw, def); err != nil {
		return nil, fmt.Errorf("decode v1 presentation definition: %w", err)
	}

	return def, nil
}

// DecodeDefinitionV2 decodes a v2 definition received as a generic map (e.g. from a mobile binding).
func DecodeDefinitionV2(raw map[string]interface{}) (*DefinitionV2, error) {
	def := &DefinitionV2{}

	if err := decode(raw, def); err != nil {
		return nil, fmt.Errorf("decode v2 presentation definition: %w", err)
	}

	return def, nil
}

func decode(input, result interface{}) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("mapstruct decoder: %w", err)
	}

	return d.Decode(input)
}
