package math

// Transform is a rigid transform: rotation followed by translation.
// The zero value is the identity transform.
type Transform struct {
	Position Vec3
	Rotation Quat
}

// NewTransform creates a transform from a position and rotation.
func NewTransform(position Vec3, rotation Quat) Transform {
	return Transform{Position: position, Rotation: rotation.Normalize()}
}

// Matrix returns the local-to-world matrix.
func (t Transform) Matrix() Mat4 {
	return Translate(t.Position.X, t.Position.Y, t.Position.Z).Mul(t.Rotation.ToMat4())
}

// InverseMatrix returns the world-to-local matrix.
func (t Transform) InverseMatrix() Mat4 {
	return t.Matrix().Inverse()
}

// TransformPoint maps a local point into world space.
func (t Transform) TransformPoint(p Vec3) Vec3 {
	return t.Matrix().TransformVec3(p)
}

// InverseTransformPoint maps a world point into local space.
func (t Transform) InverseTransformPoint(p Vec3) Vec3 {
	return t.InverseMatrix().TransformVec3(p)
}

// TransformAABB returns the world-space box enclosing a local box.
func (t Transform) TransformAABB(b AABB) AABB {
	return b.Transform(t.Matrix())
}

// InverseTransformAABB returns the local-space box enclosing a world box.
func (t Transform) InverseTransformAABB(b AABB) AABB {
	return b.Transform(t.InverseMatrix())
}

// InverseTransformRay maps a world ray into local space. Rigid transforms preserve
// length, so distances along the local ray equal world distances.
func (t Transform) InverseTransformRay(r Ray) Ray {
	inv := t.InverseMatrix()
	return Ray{
		Origin:    inv.TransformVec3(r.Origin),
		Direction: inv.TransformDirection(r.Direction).Normalize(),
	}
}

// TransformDirection rotates a local direction into world space.
func (t Transform) TransformDirection(d Vec3) Vec3 {
	return t.Matrix().TransformDirection(d)
}
