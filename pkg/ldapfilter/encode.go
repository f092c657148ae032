/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldapfilter

import (
	"errors"
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

var (
	// ErrInvalidModel is returned when encoding a filter which has
	// diagnostics.
	ErrInvalidModel = errors.New("filter is not valid")
)

// Packet encodes the filter of the model as LDAP Filter BER packet as it is
// sent in a SearchRequest.
func (m *Model) Packet() (*ber.Packet, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, m.Err())
	}
	return Encode(m.root)
}

// Encode encodes the tree rooted at n as LDAP Filter BER packet. Trees with
// invalid nodes cannot be encoded.
func Encode(n Node) (*ber.Packet, error) {
	switch f := n.(type) {
	case *AndFilter:
		return encodeList(ldap.FilterAnd, f.Operands)
	case *OrFilter:
		return encodeList(ldap.FilterOr, f.Operands)
	case *NotFilter:
		if f.Operand == nil {
			return nil, fmt.Errorf("%w: negation without operand", ErrInvalidModel)
		}
		child, err := Encode(f.Operand)
		if err != nil {
			return nil, err
		}
		packet := ber.Encode(ber.ClassContext, ber.TypeConstructed, ldap.FilterNot, nil, ldap.FilterMap[ldap.FilterNot])
		packet.AppendChild(child)
		return packet, nil
	case *ItemFilter:
		return encodeItem(f)
	case *InvalidFilter:
		return nil, fmt.Errorf("%w: invalid filter %q", ErrInvalidModel, f.Raw)
	}
	return nil, fmt.Errorf("%w: unsupported node %T", ErrInvalidModel, n)
}

func encodeList(tag ber.Tag, operands []Node) (*ber.Packet, error) {
	packet := ber.Encode(ber.ClassContext, ber.TypeConstructed, tag, nil, ldap.FilterMap[uint64(tag)])
	for _, op := range operands {
		child, err := Encode(op)
		if err != nil {
			return nil, err
		}
		packet.AppendChild(child)
	}
	return packet, nil
}

func encodeItem(f *ItemFilter) (*ber.Packet, error) {
	switch f.Type {
	case Equality:
		return encodeAVA(ldap.FilterEqualityMatch, f.Attribute, f.Value), nil
	case GreaterOrEqual:
		return encodeAVA(ldap.FilterGreaterOrEqual, f.Attribute, f.Value), nil
	case LessOrEqual:
		return encodeAVA(ldap.FilterLessOrEqual, f.Attribute, f.Value), nil
	case Approximate:
		return encodeAVA(ldap.FilterApproxMatch, f.Attribute, f.Value), nil

	case Present:
		return ber.NewString(ber.ClassContext, ber.TypePrimitive, ldap.FilterPresent, f.Attribute, ldap.FilterMap[ldap.FilterPresent]), nil

	case Substring:
		packet := ber.Encode(ber.ClassContext, ber.TypeConstructed, ldap.FilterSubstrings, nil, ldap.FilterMap[ldap.FilterSubstrings])
		packet.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, f.Attribute, "Attribute"))
		seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Substrings")
		sub := f.Substring
		if sub.Initial != "" {
			seq.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, ldap.FilterSubstringsInitial, sub.Initial, ldap.FilterSubstringsMap[ldap.FilterSubstringsInitial]))
		}
		for _, part := range sub.Any {
			seq.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, ldap.FilterSubstringsAny, part, ldap.FilterSubstringsMap[ldap.FilterSubstringsAny]))
		}
		if sub.Final != "" {
			seq.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, ldap.FilterSubstringsFinal, sub.Final, ldap.FilterSubstringsMap[ldap.FilterSubstringsFinal]))
		}
		packet.AppendChild(seq)
		return packet, nil

	case Extensible:
		ext := f.Extensible
		packet := ber.Encode(ber.ClassContext, ber.TypeConstructed, ldap.FilterExtensibleMatch, nil, ldap.FilterMap[ldap.FilterExtensibleMatch])
		if ext.MatchingRule != "" {
			packet.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, ldap.MatchingRuleAssertionMatchingRule, ext.MatchingRule, ldap.MatchingRuleAssertionMap[ldap.MatchingRuleAssertionMatchingRule]))
		}
		if ext.Attribute != "" {
			packet.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, ldap.MatchingRuleAssertionType, ext.Attribute, ldap.MatchingRuleAssertionMap[ldap.MatchingRuleAssertionType]))
		}
		packet.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, ldap.MatchingRuleAssertionMatchValue, ext.Value, ldap.MatchingRuleAssertionMap[ldap.MatchingRuleAssertionMatchValue]))
		if ext.DNAttributes {
			packet.AppendChild(ber.NewBoolean(ber.ClassContext, ber.TypePrimitive, ldap.MatchingRuleAssertionDNAttributes, true, ldap.MatchingRuleAssertionMap[ldap.MatchingRuleAssertionDNAttributes]))
		}
		return packet, nil
	}
	return nil, fmt.Errorf("%w: unsupported item type %s", ErrInvalidModel, f.Type)
}

func encodeAVA(tag ber.Tag, attribute, value string) *ber.Packet {
	packet := ber.Encode(ber.ClassContext, ber.TypeConstructed, tag, nil, ldap.FilterMap[uint64(tag)])
	packet.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attribute, "Attribute"))
	packet.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, value, "Condition"))
	return packet
}

// FromPacket decodes an LDAP Filter BER packet and parses its string form.
func FromPacket(packet *ber.Packet) (*Model, error) {
	text, err := ldap.DecompileFilter(packet)
	if err != nil {
		return nil, err
	}
	return Parse(text), nil
}
