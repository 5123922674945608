// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package image

// DefaultCatalog lists the curated managed images, newest Amazon Linux first.
//
// See https://docs.aws.amazon.com/codebuild/latest/userguide/available-runtimes.html
var DefaultCatalog = Catalog{
	{
		Name: "aws/codebuild/amazonlinux2-x86_64-standard:5.0",
		Runtimes: runtimes(
			rt("dotnet", "6.0", "8.0"),
			rt("golang", "1.20", "1.21", "1.22"),
			rt("java", "corretto8", "corretto11", "corretto17", "corretto21"),
			rt("nodejs", "18", "20"),
			rt("php", "8.2", "8.3"),
			rt("python", "3.9", "3.10", "3.11", "3.12"),
			rt("ruby", "3.1", "3.2", "3.3"),
		),
	},
	{
		Name: "aws/codebuild/amazonlinux2-x86_64-standard:4.0",
		Runtimes: runtimes(
			rt("dotnet", "6.0"),
			rt("golang", "1.18"),
			rt("java", "corretto8", "corretto11", "corretto17"),
			rt("nodejs", "16", "18"),
			rt("php", "8.1"),
			rt("python", "3.9"),
			rt("ruby", "3.1"),
		),
	},
	{
		Name: "aws/codebuild/amazonlinux2-x86_64-standard:3.0",
		Runtimes: runtimes(
			rt("android", "28", "29"),
			rt("docker", "18", "19"),
			rt("dotnet", "3.1"),
			rt("golang", "1.12", "1.13", "1.14"),
			rt("java", "corretto8", "corretto11"),
			rt("nodejs", "10", "12"),
			rt("php", "7.3", "7.4"),
			rt("python", "3.7", "3.8", "3.9"),
			rt("ruby", "2.6", "2.7"),
		),
	},
	{
		Name: "aws/codebuild/standard:7.0",
		Runtimes: runtimes(
			rt("dotnet", "6.0", "7.0", "8.0"),
			rt("golang", "1.20", "1.21", "1.22"),
			rt("java", "corretto8", "corretto11", "corretto17", "corretto21"),
			rt("nodejs", "18", "20"),
			rt("php", "8.2", "8.3"),
			rt("python", "3.9", "3.10", "3.11", "3.12"),
			rt("ruby", "3.1", "3.2", "3.3"),
		),
	},
	{
		Name: "aws/codebuild/standard:6.0",
		Runtimes: runtimes(
			rt("dotnet", "6.0"),
			rt("golang", "1.18"),
			rt("java", "corretto8", "corretto11", "corretto17"),
			rt("nodejs", "16"),
			rt("php", "8.1"),
			rt("python", "3.10"),
			rt("ruby", "3.1"),
		),
	},
	{
		Name: "aws/codebuild/standard:5.0",
		Runtimes: runtimes(
			rt("android", "29"),
			rt("dotnet", "3.1", "5.0", "6.0"),
			rt("golang", "1.12", "1.13", "1.14", "1.15", "1.16", "1.18"),
			rt("java", "corretto8", "corretto11"),
			rt("nodejs", "10", "12", "14", "16"),
			rt("php", "7.3", "7.4", "8.0"),
			rt("python", "3.7", "3.8", "3.9"),
			rt("ruby", "2.6", "2.7"),
		),
	},
	{
		Name: "aws/codebuild/amazonlinux2-aarch64-standard:3.0",
		Runtimes: runtimes(
			rt("dotnet", "6.0", "8.0"),
			rt("golang", "1.20", "1.21"),
			rt("java", "corretto8", "corretto11", "corretto17", "corretto21"),
			rt("nodejs", "18", "20"),
			rt("php", "8.2"),
			rt("python", "3.9", "3.10", "3.11", "3.12"),
			rt("ruby", "3.1", "3.2"),
		),
	},
	{
		Name: "aws/codebuild/amazonlinux2-aarch64-standard:2.0",
		Runtimes: runtimes(
			rt("dotnet", "6.0"),
			rt("golang", "1.18"),
			rt("java", "corretto8", "corretto11", "corretto17"),
			rt("nodejs", "16", "18"),
			rt("php", "8.1"),
			rt("python", "3.9"),
			rt("ruby", "3.1"),
		),
	},
}

func rt(name string, versions ...string) []string {
	var out []string
	for _, v := range versions {
		out = append(out, name+v)
	}
	return out
}

func runtimes(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
