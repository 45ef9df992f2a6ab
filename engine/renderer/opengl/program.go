package opengl

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
)

const vertexSource = `#version 410 core
layout(location = 0) in vec3 aPos;
layout(location = 1) in vec3 aNormal;
layout(location = 2) in vec4 aColor;
layout(location = 3) in vec2 aTexCoord0;
layout(location = 4) in vec2 aTexCoord1;

uniform mat4 uProjection;
uniform mat4 uModelView;
uniform vec4 uClipPlane;
uniform int uClipEnabled;

out vec4 vColor;
out vec2 vTexCoord0;
out vec2 vTexCoord1;
out vec3 vModelPos;
out vec3 vNormal;
out float gl_ClipDistance[1];

void main() {
	vec4 eye = uModelView * vec4(aPos, 1.0);
	gl_Position = uProjection * eye;
	gl_ClipDistance[0] = uClipEnabled != 0 ? dot(uClipPlane.xyz, eye.xyz) + uClipPlane.w : 1.0;
	vColor = aColor;
	vTexCoord0 = aTexCoord0;
	vTexCoord1 = aTexCoord1;
	vModelPos = aPos;
	vNormal = aNormal;
}
`

const genericFragmentSource = `#version 410 core
in vec4 vColor;
in vec2 vTexCoord0;
in vec2 vTexCoord1;

uniform sampler2D uTex0;
uniform sampler2D uTex1;
uniform int uUseTex0;
uniform int uUseTex1;
// 1 = modulate, 2 = add
uniform int uTexEnv;
// 1 = GT0, 2 = LT80, 3 = GE80
uniform int uAlphaFunc;

out vec4 fragColor;

void main() {
	vec4 c = uUseTex0 != 0 ? texture(uTex0, vTexCoord0) : vec4(1.0);
	if (uUseTex1 != 0) {
		vec4 c1 = texture(uTex1, vTexCoord1);
		if (uTexEnv == 2) {
			c = vec4(c.rgb + c1.rgb, c.a * c1.a);
		} else {
			c *= c1;
		}
	}
	c *= vColor;
	if ((uAlphaFunc == 1 && c.a <= 0.0) ||
		(uAlphaFunc == 2 && c.a >= 0.5) ||
		(uAlphaFunc == 3 && c.a < 0.5)) {
		discard;
	}
	fragColor = c;
}
`

const dlightFragmentSource = `#version 410 core
in vec4 vColor;
in vec3 vModelPos;
in vec3 vNormal;

uniform vec3 uLightOrigin;
uniform vec3 uLightColor;
uniform float uLightRadius;

out vec4 fragColor;

void main() {
	vec3 d = uLightOrigin - vModelPos;
	float dist = length(d);
	if (dist >= uLightRadius) {
		discard;
	}
	float atten = 1.0 - dist / uLightRadius;
	float facing = dot(normalize(vNormal), d) >= 0.0 ? 1.0 : 0.0;
	fragColor = vec4(uLightColor * atten * atten * facing, 1.0) * vColor;
}
`

// postFragmentSource reads the copied framebuffer texel under the fragment,
// so the geometry only has to cover the screen.
const postFragmentSource = `#version 410 core
uniform sampler2D uScene;
uniform float uGamma;

out vec4 fragColor;

void main() {
	vec4 c = texelFetch(uScene, ivec2(gl_FragCoord.xy), 0);
	fragColor = vec4(pow(c.rgb, vec3(1.0 / uGamma)), 1.0);
}
`

/**
 * @brief A linked GLSL program and the uniform locations the device sets.
 */
type program struct {
	id       uint32
	uniforms map[string]int32
}

func newProgram(vertexSrc, fragmentSrc string, names ...string) (*program, error) {
	id, err := compileProgram(vertexSrc, fragmentSrc)
	if err != nil {
		return nil, err
	}
	p := &program{id: id, uniforms: make(map[string]int32, len(names))}
	for _, name := range names {
		p.uniforms[name] = gl.GetUniformLocation(id, gl.Str(name+"\x00"))
	}
	return p, nil
}

func (p *program) use() {
	gl.UseProgram(p.id)
}

func (p *program) setInt(name string, v int32) {
	gl.Uniform1i(p.uniforms[name], v)
}

func (p *program) setFloat(name string, v float32) {
	gl.Uniform1f(p.uniforms[name], v)
}

func (p *program) setVec3(name string, x, y, z float32) {
	gl.Uniform3f(p.uniforms[name], x, y, z)
}

func (p *program) setVec4(name string, x, y, z, w float32) {
	gl.Uniform4f(p.uniforms[name], x, y, z, w)
}

func (p *program) setMat4(name string, m *[16]float32) {
	gl.UniformMatrix4fv(p.uniforms[name], 1, false, &m[0])
}

func (p *program) destroy() {
	gl.DeleteProgram(p.id)
}

func compileProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vertexShader, err := compileShader(vertexSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fragmentShader, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vertexShader)
		return 0, err
	}

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vertexShader)
	gl.AttachShader(prog, fragmentShader)
	gl.LinkProgram(prog)
	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(prog, logLength, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("failed to link program: %v", log)
	}
	return prog, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("failed to compile shader: %v", log)
	}
	return shader, nil
}
